// Package raster converts page bitmaps into the e-reader's display format.
//
// The device shows 600x800 pixels at 4 bits per pixel. Two horizontally
// adjacent pixels share a byte (left pixel in the high nibble), rows follow
// each other without padding, and a 64-byte trailer of a constant filler
// byte closes the buffer. Luminance is quantized to its top three bits, so
// only eight gray levels reach the panel even though a full nibble is
// transmitted.
//
// The raster travels compressed. Compress and Decompress are exact inverses
// and Compress is deterministic for a given Codec.
package raster
