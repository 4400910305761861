// Package exporter writes the collectors' output files.
//
// CSVWriter marshals csv-tagged structs with gocsv into ';'-delimited files,
// truncating any previous file of the same name so that a rewrite of the same
// window is byte-identical. The format helpers render prices with two decimal
// places and a comma separator and build the <prefix>_MM_YYYY.csv names the
// checkpoint reads back.
//
//	writer := exporter.NewCSVWriter(logger)
//	name := exporter.MonthFileName("Acoes_IBOV", window.Start)
//	err := writer.WriteRows(filepath.Join(dir, name), rows, exporter.WriteOptions{})
package exporter
