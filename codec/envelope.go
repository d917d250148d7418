/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2017 Markus Stenberg
 *
 * Created:       Sun Dec 24 16:42:58 2017 mstenber
 * Last modified: Wed Mar 13 09:31:55 2019 mstenber
 * Edit time:     31 min
 *
 */

package codec

import (
	"github.com/glycerine/greenpack/msgp"
	"github.com/pkg/errors"
)

// Codec envelopes. Both are encoded as two element msgpack arrays so
// that the on-disk form stays readable by any msgpack decoder.

type EncryptedData struct {
	// nonce used for AES GCM
	Nonce []byte `zid:"0"`

	// EncryptedData is AES GCM encrypted payload
	EncryptedData []byte `zid:"1"`
}

type CompressionType byte

const (
	CompressionType_UNSET CompressionType = iota

	// The data has not been compressed.
	CompressionType_PLAIN

	// The data is compressed with Snappy.
	CompressionType_SNAPPY
)

type CompressedData struct {
	// CompressionType describes how the data has been compressed.
	CompressionType CompressionType `zid:"0"`

	// RawData is the raw data of the client (whatever it is)
	RawData []byte `zid:"1"`
}

const envelopeFields = 2

func readEnvelopeHeader(nbs *msgp.NilBitsStack, bts []byte) ([]byte, error) {
	sz, bts, err := nbs.ReadArrayHeaderBytes(bts)
	if err != nil {
		return bts, err
	}
	if sz != envelopeFields {
		return bts, errors.Errorf("envelope with %d fields, wanted %d", sz, envelopeFields)
	}
	return bts, nil
}

func (self *EncryptedData) MarshalMsg(b []byte) (o []byte, err error) {
	o = msgp.AppendArrayHeader(b, envelopeFields)
	o = msgp.AppendBytes(o, self.Nonce)
	o = msgp.AppendBytes(o, self.EncryptedData)
	return
}

func (self *EncryptedData) UnmarshalMsg(bts []byte) (o []byte, err error) {
	var nbs msgp.NilBitsStack
	bts, err = readEnvelopeHeader(&nbs, bts)
	if err != nil {
		return
	}
	self.Nonce, bts, err = nbs.ReadBytesBytes(bts, nil)
	if err != nil {
		return
	}
	self.EncryptedData, bts, err = nbs.ReadBytesBytes(bts, nil)
	o = bts
	return
}

func (self *CompressedData) MarshalMsg(b []byte) (o []byte, err error) {
	o = msgp.AppendArrayHeader(b, envelopeFields)
	o = msgp.AppendByte(o, byte(self.CompressionType))
	o = msgp.AppendBytes(o, self.RawData)
	return
}

func (self *CompressedData) UnmarshalMsg(bts []byte) (o []byte, err error) {
	var nbs msgp.NilBitsStack
	bts, err = readEnvelopeHeader(&nbs, bts)
	if err != nil {
		return
	}
	var ct byte
	ct, bts, err = nbs.ReadByteBytes(bts)
	if err != nil {
		return
	}
	self.CompressionType = CompressionType(ct)
	self.RawData, bts, err = nbs.ReadBytesBytes(bts, nil)
	o = bts
	return
}
