// Package servicedef contains the JSON shapes exchanged with the ARC web API.
//
// Field names follow the API's camel-cased property names. Integers that the API may return as
// null are represented with ldvalue.OptionalInt, so that "not set" and zero stay distinguishable.
package servicedef
