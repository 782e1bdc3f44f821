// Package bridge converts dynamic values exported from a guest engine into
// strongly typed records.
//
// Input values are the plain Go shapes an engine export produces:
// map[string]interface{}, []interface{}, string, bool, int64, float64 and
// nil. Records describe their fields with `relay` struct tags:
//
//	type SearchItem struct {
//	    URL       string  `relay:"url"`               // required
//	    Indicator *string `relay:"indicator,optional"` // nil when absent
//	    Tags      []string `relay:"tags,default"`      // empty when absent
//	}
//
// Conversion never runs guest code and never returns a partially populated
// record: the first missing or mismatched field aborts the whole
// conversion with a *ConversionFailure naming its path, e.g.
// "results[0].title".
package bridge
