// Package tablecast bridges typed tabular records and wide-column stores.
//
// Records carry named, typed fields; wide-column tables carry untyped byte
// cells addressed by row key, column family, qualifier and timestamp.
// tablecast maps between the two in both directions:
//
//   - The destination connector resolves field names to family:qualifier
//     columns, encodes values per their declared type, provisions the output
//     table and its column families on demand, and writes row mutations in
//     batches. A sibling field named "<qualifier><suffix>" overlays the
//     cell's write timestamp.
//
//   - The source connector scans a table, decodes each cell using a
//     per-qualifier type hint table, and emits one record per row with the
//     decoded value under the full "family:qualifier" name and the cell
//     timestamp under that name plus the suffix.
//
// # Layout
//
//   - pkg/widecolumn: the store client contract, the column model, and the
//     name resolution rules. Drivers register per DSN scheme; the memstore
//     subpackage ships an in-process driver under "memory://".
//   - pkg/widecolumn/codec: the typed value codec. Numerics are fixed-width
//     big-endian, dates and timestamps are millisecond-epoch int64, and
//     decoding never fails: mismatched cells degrade to strings.
//   - pkg/connector: the connector contracts (core), the shared base
//     connector (base), the factory registry (registry), and the
//     wide-column source and destination implementations.
//   - internal/pipeline: the source-to-destination driver used by the CLI.
//
// # Quick start
//
//	cfg := config.NewBaseConfig("events", "widecolumn")
//	cfg.WideColumn.Store = "memory://local"
//	cfg.WideColumn.OutputTable = "events"
//	cfg.WideColumn.NumRegions = 10
//
//	dest, _ := registry.CreateDestination("widecolumn", cfg)
//	if err := dest.Initialize(ctx, cfg); err != nil {
//	    log.Fatal(err)
//	}
//	defer dest.Close(ctx)
//
// See cmd/tablecast for the CLI entry point.
package tablecast
