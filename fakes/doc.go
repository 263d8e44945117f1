// Package fakes provides managed-side classes for the simulated runtime:
// the binding exception classes and a QA service runtime adapter whose
// transactions exercise the native entry points.
package fakes
