// Package catalog resolves material configuration strings against YAML
// material files.
//
// A configuration string names a file followed by optional parameters:
//
//	Al2O3.yaml;temp=350K;packfact=0.6;density=0.9x
//
// Files are looked up in the configured search paths, then as given, after
// strict ${VAR} expansion. Parsed files are cached by resolved path and
// reloaded when the file on disk changes.
//
// Catalog implements factory.ModelService.
package catalog
