package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mumuon/pixetl-go/internal/layer"
)

// layerSpecFile is the on-disk shape of a -l/--layer JSON file, the
// alternative to supplying a layer's fields as individual run flags.
type layerSpecFile struct {
	Dataset      string   `json:"dataset"`
	Version      string   `json:"version"`
	PixelMeaning string   `json:"pixel_meaning"`
	SourceType   string   `json:"source_type"`
	GridID       string   `json:"grid_id"`
	DataType     string   `json:"data_type"`
	NoData       *float64 `json:"nodata"`
	Resampling   string   `json:"resampling"`
	Calc         string   `json:"calc"`
	Compression  string   `json:"compression"`
	Manifest     string   `json:"manifest"`
}

// loadLayerSpecFile decodes a layer spec JSON file with strict field
// validation: an unrecognized key is a ValidationError, not a silent no-op.
func loadLayerSpecFile(path string) (layerSpecFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return layerSpecFile{}, fmt.Errorf("read layer spec %s: %w", path, err)
	}
	var f layerSpecFile
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return layerSpecFile{}, fmt.Errorf("decode layer spec %s: %w", path, err)
	}
	return f, nil
}

func (f layerSpecFile) toSpec() layer.Spec {
	return layer.Spec{
		Dataset:      f.Dataset,
		Version:      f.Version,
		PixelMeaning: f.PixelMeaning,
		SourceType:   layer.SourceType(f.SourceType),
		DataType:     layer.DataType(f.DataType),
		NoData:       f.NoData,
		GridID:       f.GridID,
		Resampling:   layer.ResamplingMethod(f.Resampling),
		SourceURI:    f.Manifest,
		Calc:         f.Calc,
	}
}
