// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Concurrency primitives for the debugger control plane: the allocation-free
// single-producer/single-consumer Ring that connects controller and
// performance threads, the adaptive Backoff used by polling loops, and
// performance-thread CPU pinning.
package concurrency
