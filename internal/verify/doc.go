// Package verify decodes FLAC files and checks the decoded audio against the
// MD5 signature stored in the stream header.
//
// The Verifier depends only on the Decoder and Stream interfaces; the
// production decoder (FLACDecoder) is backed by github.com/mewkiz/flac.
package verify
