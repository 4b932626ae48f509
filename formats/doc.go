/*
Package formats holds ready-made schemas for well known binary layouts.

	ipv4   IPv4 header, including options
	tcp    TCP header with the flag bits nested under "flags", including options
	bmp    BMP file and info headers (little-endian)
	tar    ustar archive: headers, file data and block padding
	jpeg   JPEG segments dispatched on their marker
	spdy   SPDY/3 control and data frames

Every format is registered by name; Lookup returns it and Format.Schema builds
a Schema that logs through the given logger. The schemas are lossless for
well formed input: encoding a decoded tree reproduces the input bytes.
*/
package formats
