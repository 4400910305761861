// Package files provides file system discovery and management for the collectors.
//
// Discovery lists output directories and matches file names against patterns;
// the checkpoint uses it to read resume points out of MM_YYYY file names.
//
// Manager moves downloaded files into place, replacing previous versions.
//
//	discovery := files.NewDiscovery("")
//	matches, err := discovery.FindByRegexp(outputDir, regexp.MustCompile(`(\d{2})_(\d{4})`))
package files
