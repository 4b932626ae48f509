/*
Package compress reads and writes the compressed captures the bitwire
command accepts: "gzip", "zstd" and "lz4" (frame format).

A simple use case:

	raw, err := compress.Decompress("auto", data)

The "auto" name picks the codec from the leading magic bytes and passes
unrecognized data through unchanged. "none" never decompresses.

Implement other formats:

1. Implement Codec for the format.

2. Call Register with it.
*/
package compress
