// Package vis defines the visibility buffers a gridder consumes and the
// iterator that delivers them.
//
// A Buffer holds a block of rows sharing one parallactic angle. Data, flags
// and model values are indexed [row][channel][polarization]; weights are
// indexed [row][channel].
package vis
