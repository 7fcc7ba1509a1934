// Package raster holds georeferenced single-band grids ready to leave the
// process, and the writers that persist them.
//
// Writers commit atomically: data goes to a temporary name next to the
// destination and is renamed into place only once complete, so a failed
// write never leaves a valid-looking output behind.
package raster
