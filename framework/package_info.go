// Package framework contains the low-level implementation of test runner infrastructure that is
// not specific to accessibility conformance.
//
// The general model is:
//
// 1. There is a general notion of a test context which is similar to Go's *testing.T, allowing
// pieces of test logic to be associated with a test identifier and to accumulate success/failure
// results. A Context can be passed to the assert and require packages of testify.
//
// 2. Tests form a tree. Each subtest can be selected or excluded by regex filters on its path.
//
// 3. Each test has its own debug logger, whose output is only shown if the test logger asks for it,
// and its own list of deferred cleanup functions, which run however the test exits.
//
// The domain-specific code that knows what is being tested is responsible for talking to the
// remote service and for deciding what the subtests are.
package framework
