// File: pool/doc.go
// Package pool
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Byte buffer pooling for transport reads. Buffers are grouped in
// power-of-two size classes, each class a bounded free list, so a reader
// that grows or shrinks its buffer moves between classes without
// allocating on the steady path.
package pool
