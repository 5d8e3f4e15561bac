// Package conformance checks the digital assets of ARC domains against their initiative policies.
//
// The check is a fixed sequence of calls to the ARC service: select domains, collect their
// policies, wait for an automation session, scan each asset referenced by the policies, and count
// the scan's assertions against each policy's target. Runner performs the sequence as a library
// call; RunTestSuite performs it as a tree of framework tests, which is what the command line
// tool uses.
package conformance
