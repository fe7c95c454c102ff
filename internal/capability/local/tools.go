// ABOUTME: Builtin tools served by the local capability backend.
// ABOUTME: echo returns its input; lookup_site serves the bundled site records.

package local

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// siteRecord is one entry in the bundled site intelligence dataset.
type siteRecord struct {
	ParcelID string  `json:"parcelId"`
	Address  string  `json:"address"`
	Zoning   string  `json:"zoning"`
	AreaSqm  float64 `json:"areaSqm"`
	Owner    string  `json:"owner"`
}

// siteRecords is a small fixed dataset. A production deployment points the
// hub at a remote backend instead; this exists so the local mode is useful
// out of the box.
var siteRecords = map[string]siteRecord{
	"PV-1001": {
		ParcelID: "PV-1001",
		Address:  "112 Harbor View Rd",
		Zoning:   "R-2 residential",
		AreaSqm:  840.5,
		Owner:    "Harborview Trust",
	},
	"PV-1002": {
		ParcelID: "PV-1002",
		Address:  "4 Mill Lane",
		Zoning:   "C-1 commercial",
		AreaSqm:  1260.0,
		Owner:    "Millworks LLC",
	},
	"PV-1003": {
		ParcelID: "PV-1003",
		Address:  "88 Orchard Ave",
		Zoning:   "R-1 residential",
		AreaSqm:  610.25,
		Owner:    "J. & M. Okafor",
	},
}

func builtinTools() map[string]ToolFunc {
	return map[string]ToolFunc{
		"echo":        echoTool,
		"lookup_site": lookupSiteTool,
	}
}

// echoTool returns its parameters unchanged, with a timestamp. Useful for
// end-to-end relay checks from any connected agent.
func echoTool(_ context.Context, params map[string]any) (map[string]any, error) {
	return map[string]any{
		"echo":      params,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// lookupSiteTool resolves a parcel id or address fragment against the
// bundled dataset.
func lookupSiteTool(_ context.Context, params map[string]any) (map[string]any, error) {
	parcelID, _ := params["parcelId"].(string)
	if parcelID != "" {
		rec, ok := siteRecords[parcelID]
		if !ok {
			return nil, fmt.Errorf("parcel %q not found", parcelID)
		}
		return map[string]any{"site": rec}, nil
	}

	address, _ := params["address"].(string)
	if address == "" {
		return nil, fmt.Errorf("parcelId or address parameter is required")
	}
	needle := strings.ToLower(address)
	var matches []siteRecord
	for _, rec := range siteRecords {
		if strings.Contains(strings.ToLower(rec.Address), needle) {
			matches = append(matches, rec)
		}
	}
	return map[string]any{"matches": matches}, nil
}
