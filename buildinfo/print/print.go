// Package print is imported for its side effect: it writes the binary's
// build provenance to STDERR at startup.
package print

import "github.com/DavideScarpetta/BULK-RNA-seq/buildinfo"

func init() {
	buildinfo.PrintToStderr()
}
