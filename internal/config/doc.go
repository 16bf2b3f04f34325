// Package config loads the configuration of the csst tools.
//
// # Configuration Sources
//
// Configuration is built from the following sources, later ones winning:
//
//	1. Default values
//	2. A YAML file named by CSST_CONFIG_FILE, or ./config.yaml, or ./configs/config.yaml
//	3. Environment variables
//
// # Environment Variables
//
// Variables use the CSST prefix and the section name:
//
//	CSST_PATHS_INPUT_DIR=/data/exports
//	CSST_PROCESSING_WORKERS=8
//	CSST_STORAGE_DRIVER=sqlite
//	CSST_STORAGE_DSN=/var/lib/csst/csst.db
//	CSST_ARCHIVE_DRIVER=s3
//	CSST_ARCHIVE_BUCKET=crystal16-raw
//
// # Example file
//
//	paths:
//	  input_dir: exports
//	  output_dir: processed
//	processing:
//	  skip_tune_and_load: true
//	storage:
//	  driver: postgres
//	  dsn: postgres://csst@localhost/csst
//
// # Validation
//
// Load validates every section with go-playground/validator struct tags
// and returns an error of type CONFIG listing each failing field.
package config
