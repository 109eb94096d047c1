// Package layer defines the input contract for one tiling run: the layer
// specification and its validation, plus the post-processing metadata types
// (symbology, stats, histogram) a finished tile can carry.
//
// Grounded on original_source/gfw_pixetl/models/pydantic.py's LayerModel and
// related pydantic models, ported to a hand-validated Go struct the way the
// tile-service template validates its own Config in config.go.
package layer

import (
	"fmt"
	"math"
	"regexp"
)

type SourceType string

const (
	SourceRaster   SourceType = "raster"
	SourceVector   SourceType = "vector"
	SourceTCDRaster SourceType = "tcd_raster"
)

type DataType string

const (
	DTypeUint8   DataType = "uint8"
	DTypeInt8    DataType = "int8"
	DTypeUint16  DataType = "uint16"
	DTypeInt16   DataType = "int16"
	DTypeUint32  DataType = "uint32"
	DTypeInt32   DataType = "int32"
	DTypeFloat32 DataType = "float32"
	DTypeFloat64 DataType = "float64"
)

var validDataTypes = map[DataType]bool{
	DTypeUint8: true, DTypeInt8: true, DTypeUint16: true, DTypeInt16: true,
	DTypeUint32: true, DTypeInt32: true, DTypeFloat32: true, DTypeFloat64: true,
}

// DataTypeRange returns dt's representable [lo, hi] range and whether dt is
// bounded at all; float32/float64 have no fixed range and bounded is false.
// The single source of truth for this table, shared by Spec.Validate's
// nodata check and internal/transform's cast-to-dtype clamping.
func DataTypeRange(dt DataType) (lo, hi float64, bounded bool) {
	switch dt {
	case DTypeUint8:
		return 0, math.MaxUint8, true
	case DTypeInt8:
		return math.MinInt8, math.MaxInt8, true
	case DTypeUint16:
		return 0, math.MaxUint16, true
	case DTypeInt16:
		return math.MinInt16, math.MaxInt16, true
	case DTypeUint32:
		return 0, math.MaxUint32, true
	case DTypeInt32:
		return math.MinInt32, math.MaxInt32, true
	default:
		return 0, 0, false
	}
}

type ResamplingMethod string

const (
	ResamplingNearest     ResamplingMethod = "nearest"
	ResamplingBilinear    ResamplingMethod = "bilinear"
	ResamplingCubic       ResamplingMethod = "cubic"
	ResamplingCubicSpline ResamplingMethod = "cubic_spline"
	ResamplingLanczos     ResamplingMethod = "lanczos"
	ResamplingAverage     ResamplingMethod = "average"
	ResamplingMode        ResamplingMethod = "mode"
	ResamplingMax         ResamplingMethod = "max"
	ResamplingMin         ResamplingMethod = "min"
	ResamplingMedian      ResamplingMethod = "med"
	ResamplingSum         ResamplingMethod = "sum"
)

// validResamplingMethods mirrors rasterio.enums.Resampling's member names,
// which original_source/gfw_pixetl/resampling.py builds dynamically via
// aenum.extend_enum; Go has no dynamic enum extension so the member set is
// hardcoded here instead.
var validResamplingMethods = map[ResamplingMethod]bool{
	ResamplingNearest: true, ResamplingBilinear: true, ResamplingCubic: true,
	ResamplingCubicSpline: true, ResamplingLanczos: true, ResamplingAverage: true,
	ResamplingMode: true, ResamplingMax: true, ResamplingMin: true,
	ResamplingMedian: true, ResamplingSum: true,
}

// versionPattern matches spec.md's literal version regex.
var versionPattern = regexp.MustCompile(`^v[0-9]{1,8}(\.[0-9]{0,3}){0,2}$`)

// RGBA is a single symbology colormap entry.
type RGBA struct {
	Red, Green, Blue, Alpha uint8
}

type Symbology struct {
	Type     string
	Colormap map[float64]RGBA
}

type BandStats struct {
	Min, Max, Mean, Std float64
}

type Histogram struct {
	BinCount int
	BinWidth float64
	Min, Max float64
	Values   []int64
}

type Band struct {
	Stats       *BandStats
	Histogram   *Histogram
	NoDataValue *float64
	DataType    DataType
}

type Metadata struct {
	Bands  []Band
	Extent [4]float64 // west, south, east, north
}

// Spec is the complete description of one layer-version to materialize,
// grounded on original_source/gfw_pixetl/models/pydantic.py's LayerModel.
type Spec struct {
	Dataset      string
	Version      string
	PixelMeaning string
	SourceType   SourceType
	DataType     DataType
	NBits        *int
	NoData       *float64
	GridID       string
	Resampling   ResamplingMethod
	SourceURI    string
	Calc         string
	Order        int
	Symbology    *Symbology

	ComputeStats     bool
	ComputeHistogram bool
	ProcessLocally   bool
}

// Validate checks Spec against the invariants in spec.md §3: version must
// match the literal pattern, calc requires a raster source, data type and
// resampling method must be recognized. Returns a ValidationError-class
// error; callers should treat any non-nil return as fatal, pre-I/O.
func (s Spec) Validate() error {
	if s.Dataset == "" {
		return fmt.Errorf("layer: dataset is required")
	}
	if !versionPattern.MatchString(s.Version) {
		return fmt.Errorf("layer: version %q does not match pattern %s", s.Version, versionPattern.String())
	}
	switch s.SourceType {
	case SourceRaster, SourceVector, SourceTCDRaster:
	default:
		return fmt.Errorf("layer: unknown source_type %q", s.SourceType)
	}
	if !validDataTypes[s.DataType] {
		return fmt.Errorf("layer: unknown data_type %q", s.DataType)
	}
	if s.Resampling == "" {
		s.Resampling = ResamplingNearest
	}
	if !validResamplingMethods[s.Resampling] {
		return fmt.Errorf("layer: unknown resampling method %q", s.Resampling)
	}
	if s.Calc != "" && s.SourceType != SourceRaster {
		return fmt.Errorf("layer: calc is only valid for source_type=raster, got %q", s.SourceType)
	}
	if s.GridID == "" {
		return fmt.Errorf("layer: grid_id is required")
	}
	if s.NoData != nil {
		if lo, hi, bounded := DataTypeRange(s.DataType); bounded && (*s.NoData < lo || *s.NoData > hi) {
			return fmt.Errorf("layer: nodata value %v is not representable in data_type %q (range [%v, %v])", *s.NoData, s.DataType, lo, hi)
		}
	}
	return nil
}

// HasCalc reports whether the layer has a per-pixel expression to evaluate.
func (s Spec) HasCalc() bool { return s.Calc != "" }

// RemoteKeyPrefix returns the object-storage key prefix all of this layer's
// tiles are written under, per spec.md §6:
// {dataset}/{version}/raster/{grid_id}/{pixel_meaning} (no trailing slash)
func (s Spec) RemoteKeyPrefix() string {
	return fmt.Sprintf("%s/%s/raster/%s/%s", s.Dataset, s.Version, s.GridID, s.PixelMeaning)
}
