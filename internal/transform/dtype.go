package transform

import (
	"math"

	"github.com/mumuon/pixetl-go/internal/layer"
	"github.com/mumuon/pixetl-go/internal/maskedarray"
)

// DTypeSize returns sizeof(dtype) in bytes, the bytes_per_block term's
// dtype factor callers outside this package need for PlanParams.DtypeSize.
func DTypeSize(dt layer.DataType) int { return dtypeSize(dt) }

// dtypeSize returns sizeof(dtype) in bytes, used by window planning's
// bytes_per_block term.
func dtypeSize(dt layer.DataType) int {
	switch dt {
	case layer.DTypeUint8, layer.DTypeInt8:
		return 1
	case layer.DTypeUint16, layer.DTypeInt16:
		return 2
	case layer.DTypeUint32, layer.DTypeInt32, layer.DTypeFloat32:
		return 4
	case layer.DTypeFloat64:
		return 8
	default:
		return 8
	}
}

// castToDtype implements spec.md §4.5's cast_to_dtype: if dst has a nodata
// value, masked cells are replaced with it before casting; otherwise the
// underlying data is cast as-is. Values are clamped to the destination
// dtype's representable range (a float32/float64 destination is left
// unclamped), per layer.DataTypeRange.
func castToDtype(arr *maskedarray.Array, dt layer.DataType, nodata *float64) *maskedarray.Array {
	out := maskedarray.New(arr.Width, arr.Height)
	lo, hi, bounded := layer.DataTypeRange(dt)

	for i, v := range arr.Data {
		if arr.Mask[i] && nodata != nil {
			v = *nodata
		}
		if bounded {
			v = math.Round(v)
			if v < lo {
				v = lo
			}
			if v > hi {
				v = hi
			}
		}
		out.Data[i] = v
		out.Mask[i] = arr.Mask[i] && nodata == nil
	}
	return out
}
