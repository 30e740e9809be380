// Package contracts defines the envelope placed in every published message
// body.
//
// An envelope is the JSON document
//
//	{"method": "<name>", "data": <any JSON value>}
//
// encoded as UTF-8 with non-ASCII characters written literally. The method
// names the operation the consumer should perform; data is opaque to the
// publisher.
package contracts
