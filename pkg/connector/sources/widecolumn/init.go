package widecolumn

import (
	"github.com/tablecast/tablecast/pkg/connector/registry"
)

func init() {
	if err := registry.RegisterSource("widecolumn", NewSource); err != nil {
		panic(err)
	}
	registry.RegisterInfo(&registry.ConnectorInfo{
		Name:        "widecolumn",
		Type:        "source",
		Description: "Scans a wide-column table into typed records using per-qualifier decode hints",
		Version:     "1.0.0",
		Capabilities: []string{
			"batch",
			"streaming",
			"family_filter",
			"type_hints",
		},
	})
}
