package domain

import (
	"fmt"

	"github.com/paulmach/orb/geojson"
)

// LayerName identifies one of the map layers
type LayerName string

const (
	LayerBoundary      LayerName = "boundary"
	LayerNeighborhoods LayerName = "neighborhoods"
	LayerStations      LayerName = "stations"
	LayerDistricts     LayerName = "districts"
)

// Layers lists every map layer in load order
var Layers = []LayerName{LayerBoundary, LayerNeighborhoods, LayerStations, LayerDistricts}

// ParseLayer validates a layer name
func ParseLayer(s string) (LayerName, error) {
	for _, l := range Layers {
		if string(l) == s {
			return l, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLayer, s)
}

// LayerState distinguishes a layer not loaded yet from one that failed
type LayerState string

const (
	LayerPending LayerState = "pending"
	LayerLoaded  LayerState = "loaded"
	LayerFailed  LayerState = "failed"
)

// Layer is a published map layer. Doc is nil unless State is LayerLoaded.
type Layer struct {
	Name    LayerName                  `json:"name"`
	State   LayerState                 `json:"state"`
	Doc     *geojson.FeatureCollection `json:"-"`
	Raw     []byte                     `json:"-"`
	Outcome *LoadOutcome               `json:"outcome,omitempty"`
}

// MapLayers is a snapshot of all four layers
type MapLayers struct {
	Boundary      *geojson.FeatureCollection
	Neighborhoods *geojson.FeatureCollection
	Stations      *geojson.FeatureCollection
	Districts     *geojson.FeatureCollection
}
