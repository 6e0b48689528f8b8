package msp

import (
	"encoding/binary"
	"errors"
)

var (
	ErrChecksum     = errors.New("MSP checksum error")
	ErrShortPayload = errors.New("MSP payload too short")
	ErrFrameTooLong = errors.New("MSP payload too long")
)

const (
	state_INIT = iota
	state_M
	state_DIRN
	state_LEN
	state_CMD
	state_DATA
	state_CRC

	state_X_HEADER2
	state_X_FLAGS
	state_X_ID1
	state_X_ID2
	state_X_LEN1
	state_X_LEN2
	state_X_DATA
	state_X_CHECKSUM
)

// Frame is a decoded FC reply. OK is false for '!' (error) replies.
type Frame struct {
	Cmd     uint16
	OK      bool
	Payload []byte
}

func crc8_dvb_s2(crc byte, a byte) byte {
	crc ^= a
	for i := 0; i < 8; i++ {
		if (crc & 0x80) != 0 {
			crc = (crc << 1) ^ 0xd5
		} else {
			crc = crc << 1
		}
	}
	return crc
}

func encode_msp(cmd uint16, payload []byte) []byte {
	paylen := len(payload)
	buf := make([]byte, 6+paylen)
	buf[0] = '$'
	buf[1] = 'M'
	buf[2] = '<'
	buf[3] = byte(paylen)
	buf[4] = byte(cmd)
	if paylen > 0 {
		copy(buf[5:], payload)
	}
	crc := byte(0)
	for _, b := range buf[3 : 5+paylen] {
		crc ^= b
	}
	buf[5+paylen] = crc
	return buf
}

func encode_msp2(cmd uint16, payload []byte) []byte {
	paylen := len(payload)
	buf := make([]byte, 9+paylen)
	buf[0] = '$'
	buf[1] = 'X'
	buf[2] = '<'
	buf[3] = 0 // flags
	binary.LittleEndian.PutUint16(buf[4:6], cmd)
	binary.LittleEndian.PutUint16(buf[6:8], uint16(paylen))
	if paylen > 0 {
		copy(buf[8:], payload)
	}
	crc := byte(0)
	for _, b := range buf[3 : paylen+8] {
		crc = crc8_dvb_s2(crc, b)
	}
	buf[8+paylen] = crc
	return buf
}

// Encode builds a request frame, MSPv1 where the id and length fit, MSPv2 otherwise.
func Encode(cmd uint16, payload []byte) ([]byte, error) {
	if len(payload) > 0xffff {
		return nil, ErrFrameTooLong
	}
	if cmd > 255 || len(payload) > 254 {
		return encode_msp2(cmd, payload), nil
	}
	return encode_msp(cmd, payload), nil
}

// EncodeReply builds a frame as the FC would send it. The link uses it for
// locally answered requests; tests use it to fake an FC.
func EncodeReply(cmd uint16, payload []byte, ok bool) []byte {
	var buf []byte
	if cmd > 255 || len(payload) > 254 {
		buf = encode_msp2(cmd, payload)
	} else {
		buf = encode_msp(cmd, payload)
	}
	if ok {
		buf[2] = '>'
	} else {
		buf[2] = '!'
	}
	return buf
}

// Decoder is the reply state machine. Feed it one byte at a time; it is
// not safe for concurrent use.
type Decoder struct {
	n     int
	fr    Frame
	len   uint16
	count uint16
	crc   byte
}

// Feed consumes one byte. done is true when a frame has been completed; err
// is ErrChecksum when a complete frame failed its check (the frame is then
// discarded and the decoder resynchronises on the next '$').
func (d *Decoder) Feed(b byte) (fr Frame, done bool, err error) {
	switch d.n {
	case state_INIT:
		if b == '$' {
			d.n = state_M
			d.fr = Frame{}
			d.len = 0
			d.count = 0
		}
	case state_M:
		if b == 'M' {
			d.n = state_DIRN
		} else if b == 'X' {
			d.n = state_X_HEADER2
		} else {
			d.n = state_INIT
		}
	case state_DIRN:
		if b == '!' {
			d.n = state_LEN
		} else if b == '>' {
			d.n = state_LEN
			d.fr.OK = true
		} else {
			d.n = state_INIT
		}
	case state_LEN:
		d.len = uint16(b)
		d.crc = b
		d.n = state_CMD
	case state_CMD:
		d.fr.Cmd = uint16(b)
		d.crc ^= b
		if d.len == 0 {
			d.n = state_CRC
		} else {
			d.fr.Payload = make([]byte, d.len)
			d.n = state_DATA
		}
	case state_DATA:
		d.fr.Payload[d.count] = b
		d.crc ^= b
		d.count++
		if d.count == d.len {
			d.n = state_CRC
		}
	case state_CRC:
		d.n = state_INIT
		if d.crc != b {
			return Frame{}, false, ErrChecksum
		}
		return d.fr, true, nil

	case state_X_HEADER2:
		if b == '!' {
			d.n = state_X_FLAGS
		} else if b == '>' {
			d.n = state_X_FLAGS
			d.fr.OK = true
		} else {
			d.n = state_INIT
		}
	case state_X_FLAGS:
		d.crc = crc8_dvb_s2(0, b)
		d.n = state_X_ID1
	case state_X_ID1:
		d.crc = crc8_dvb_s2(d.crc, b)
		d.fr.Cmd = uint16(b)
		d.n = state_X_ID2
	case state_X_ID2:
		d.crc = crc8_dvb_s2(d.crc, b)
		d.fr.Cmd |= uint16(b) << 8
		d.n = state_X_LEN1
	case state_X_LEN1:
		d.crc = crc8_dvb_s2(d.crc, b)
		d.len = uint16(b)
		d.n = state_X_LEN2
	case state_X_LEN2:
		d.crc = crc8_dvb_s2(d.crc, b)
		d.len |= uint16(b) << 8
		if d.len > 0 {
			d.fr.Payload = make([]byte, d.len)
			d.n = state_X_DATA
		} else {
			d.n = state_X_CHECKSUM
		}
	case state_X_DATA:
		d.crc = crc8_dvb_s2(d.crc, b)
		d.fr.Payload[d.count] = b
		d.count++
		if d.count == d.len {
			d.n = state_X_CHECKSUM
		}
	case state_X_CHECKSUM:
		d.n = state_INIT
		if d.crc != b {
			return Frame{}, false, ErrChecksum
		}
		return d.fr, true, nil
	}
	return Frame{}, false, nil
}
