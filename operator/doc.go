// Package operator provides implementations of ptycho.DiffractionOperator.
//
// Implementations are reached through a small backend registry that mirrors
// a GPU plugin surface: a Backend reports whether it can run on this host
// and builds operators for a fixed geometry. Two CPU backends are always
// registered, "algofft" (the default) and "gonum"; they differ only in the
// FFT engine. A "cuda" stub is compiled in with the cuda build tag and
// always reports itself unavailable.
package operator
