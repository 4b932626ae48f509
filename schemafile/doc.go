/*
Package schemafile loads bitwire schemas from YAML or JSONC documents.

A document lists fields in order, and optionally named structs that fields
refer to:

	name: packet
	endian: big
	structs:
	  ping:
	    fields:
	      - {name: id, type: uint32}
	fields:
	  - {name: version, type: bits, width: 4, assert: 4}
	  - {name: kind, type: bits, width: 4}
	  - {name: size, type: uint16}
	  - {name: body, type: match, match: {on: kind, cases: {1: ping}}}
	  - {name: tail, type: string, length: $size - 5, encoding: hex}

Field types are the primitive names (uint8 through float64, float, double),
bits, string, array, nest, match and skip. Lengths and counts are integers
or expressions over earlier fields of the same struct.
*/
package schemafile
