// File: internal/engine/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Reference k-rate performance loop. Each k-cycle advances every active
// instrument instance once through its scripted evaluation points, asking the
// installed api.Evaluator whether each point may proceed. A paused instance
// keeps its position and is re-evaluated on the next cycle. It stands in for
// a synthesis engine in tests and in the kdebug command.
package engine
