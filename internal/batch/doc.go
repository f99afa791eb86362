// Package batch reads several trees described by one YAML or JSON file and
// writes each of them under a common output directory.
//
//	trees:
//	  - url: https://github.com/org/repo/tree/main/docs
//	    exclude: ["*.png"]
//	  - url: https://github.com/org/other
//	    output: other-repo
//	options:
//	  output: ./trees
//	  concurrency: 4
//	  continue_on_error: true
//
// Each tree is written to options.output/<output>, where output defaults to
// owner-repo taken from the URL.
package batch
