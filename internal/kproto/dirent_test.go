package kproto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteDirent_RoundTripLength(t *testing.T) {
	buf := make([]byte, 64)
	n := WriteDirent(buf, Dirent{Ino: 7, Offset: 1, Name: "f", Type: DT_Reg})
	assert.Greater(t, n, 0)
	assert.Equal(t, 0, n%8) // padded to FUSE_DIRENT_ALIGN
}

func TestWriteDirent_TooSmallBufferReturnsZero(t *testing.T) {
	buf := make([]byte, 4)
	n := WriteDirent(buf, Dirent{Ino: 1, Name: "longname"})
	assert.Equal(t, 0, n)
}
