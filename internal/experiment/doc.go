// Package experiment loads Crystal 16 dissolution/solubility exports into
// domain.Experiment trees.
//
// # File layout
//
// An export is one text file with four parts:
//
//	Line 1                 <anything>,<anything>:<version>
//	Header block           key,value lines up to a line containing "Temperature Program"
//	Temperature program    Block/Tune/Stir (Bottom)/Heat to/Cool to/Hold at lines up to "Data Block"
//	Data block             a CSV table with a header row
//
// The header and program are read by an explicit state machine. The data block
// is handed to encoding/csv and its columns are found by substring.
//
// # Versions
//
// Parsers are looked up by the version token of line 1. Only "1014" ships;
// other formats can be added with Loader.RegisterVersion. An unknown version
// returns the partial experiment (file name and version) together with an
// error matching errors.ErrFormat.
//
// # Usage
//
//	loader := experiment.NewLoader(logger)
//	exp, err := loader.LoadFromFile(ctx, "run.csv")
//	if err != nil {
//	    return err
//	}
//	for _, r := range exp.Reactors {
//	    fmt.Println(r)
//	}
package experiment
