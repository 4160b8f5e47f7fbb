package wallpad

import (
	"fmt"
	"strings"
)

// Frame layout constants. Every frame on the bus is exactly 21 bytes:
//
//	Byte 0-1:  header AA 55
//	Byte 2-3:  type (0x30 0xBC data, 0x30 0xDC ack; low byte varies ±2)
//	Byte 4:    reserved 0x00
//	Byte 5-6:  destination (class, room)
//	Byte 7-8:  source (class, room)
//	Byte 9:    command
//	Byte 10-17: value (8 bytes, meaning per device class)
//	Byte 18:   checksum = sum(bytes 2..17) mod 256
//	Byte 19-20: footer 0D 0D
const (
	// FrameLength is the fixed wire size of a frame.
	FrameLength = 21

	typeHigh = 0x30
	typeData = 0xBC
	typeAck  = 0xDC

	// typeBand is the tolerance around the canonical type low byte.
	// The wallpad emits 0xBC/0xBD/0xBE for data and 0xDC/0xDD/0xDE for
	// acks depending on retransmission state.
	typeBand = 2
)

var (
	frameHeader = [2]byte{0xAA, 0x55}
	frameFooter = [2]byte{0x0D, 0x0D}
)

// FrameType classifies a frame as a data frame or an acknowledgement.
type FrameType byte

const (
	// FrameData carries device state or a command.
	FrameData FrameType = typeData
	// FrameAck acknowledges a previously sent frame. Acks carry no state
	// and are discarded by the dispatcher.
	FrameAck FrameType = typeAck
)

// Frame is a decoded bus frame.
type Frame struct {
	Type  FrameType
	Dst   Address
	Src   Address
	Cmd   Command
	Value [8]byte

	// ChecksumOK is false when the checksum byte did not match the body.
	// The frame is still usable: the bus is observed to emit occasional
	// checksum mismatches on otherwise well-formed frames, so the policy
	// is to log and process rather than reject.
	ChecksumOK bool
}

// String renders the frame for logs: "data light/3 <- wallpad set FF 00 ...".
func (f Frame) String() string {
	kind := "data"
	if f.Type == FrameAck {
		kind = "ack"
	}
	var hex strings.Builder
	for i, b := range f.Value {
		if i > 0 {
			hex.WriteByte(' ')
		}
		fmt.Fprintf(&hex, "%02X", b)
	}
	return fmt.Sprintf("%s %s <- %s %s [%s]", kind, f.Dst, f.Src, f.Cmd, hex.String())
}

// checksum computes the frame checksum over the body (bytes 2..17 of the
// wire frame).
func checksum(body []byte) byte {
	var sum int
	for _, b := range body {
		sum += int(b)
	}
	return byte(sum % 256)
}

// Encode builds a standard outgoing data frame: type=data, source=wallpad.
// This covers every command the bridge issues except the elevator call.
func Encode(dst Address, cmd Command, value [8]byte) []byte {
	return EncodeRaw([2]byte{typeHigh, typeData}, dst, SingletonAddr(ClassWallpad), cmd, value)
}

// EncodeRaw builds a frame with every field explicit. It exists for the
// elevator call frame, which by bus convention carries the wallpad in the
// destination slot and the elevator in the source slot.
func EncodeRaw(typ [2]byte, dst, src Address, cmd Command, value [8]byte) []byte {
	buf := make([]byte, FrameLength)
	buf[0] = frameHeader[0]
	buf[1] = frameHeader[1]
	buf[2] = typ[0]
	buf[3] = typ[1]
	buf[4] = 0x00
	buf[5] = byte(dst.Class)
	buf[6] = dst.Room
	buf[7] = byte(src.Class)
	buf[8] = src.Room
	buf[9] = byte(cmd)
	copy(buf[10:18], value[:])
	buf[18] = checksum(buf[2:18])
	buf[19] = frameFooter[0]
	buf[20] = frameFooter[1]
	return buf
}

// Decode parses a 21-byte wire frame.
//
// Structural faults (length, header, footer, unknown type/class/command) are
// rejected with the matching sentinel error. A checksum mismatch is NOT a
// rejection: the frame is returned with ChecksumOK=false and the caller
// decides whether to log it (see Frame.ChecksumOK).
func Decode(data []byte) (Frame, error) {
	if len(data) != FrameLength {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrBadLength, len(data))
	}
	if data[0] != frameHeader[0] || data[1] != frameHeader[1] {
		return Frame{}, fmt.Errorf("%w: %02X %02X", ErrBadHeader, data[0], data[1])
	}
	if data[19] != frameFooter[0] || data[20] != frameFooter[1] {
		return Frame{}, fmt.Errorf("%w: %02X %02X", ErrBadFooter, data[19], data[20])
	}

	ft, err := classifyType(data[3])
	if err != nil {
		return Frame{}, err
	}

	dst := Address{Class: DeviceClass(data[5]), Room: data[6]}
	src := Address{Class: DeviceClass(data[7]), Room: data[8]}
	if !dst.Class.Valid() {
		return Frame{}, fmt.Errorf("%w: dst 0x%02X", ErrUnknownDeviceClass, data[5])
	}
	if !src.Class.Valid() {
		return Frame{}, fmt.Errorf("%w: src 0x%02X", ErrUnknownDeviceClass, data[7])
	}

	cmd := Command(data[9])
	if !cmd.Valid() {
		return Frame{}, fmt.Errorf("%w: 0x%02X", ErrUnknownCommand, data[9])
	}

	f := Frame{
		Type:       ft,
		Dst:        dst,
		Src:        src,
		Cmd:        cmd,
		ChecksumOK: checksum(data[2:18]) == data[18],
	}
	copy(f.Value[:], data[10:18])
	return f, nil
}

// classifyType maps the type low byte onto data/ack using the tolerance
// band; the classification is a range match, not strict equality.
func classifyType(b byte) (FrameType, error) {
	switch {
	case b >= typeData && b <= typeData+typeBand:
		return FrameData, nil
	case b >= typeAck && b <= typeAck+typeBand:
		return FrameAck, nil
	}
	return 0, fmt.Errorf("%w: 0x%02X", ErrUnknownType, b)
}

// findHeader returns the index of the first header occurrence in data, or -1.
// Used by the read loop to resynchronise after noise or a torn frame.
func findHeader(data []byte) int {
	for i := 0; i+1 < len(data); i++ {
		if data[i] == frameHeader[0] && data[i+1] == frameHeader[1] {
			return i
		}
	}
	return -1
}

// hasFooter reports whether the 21-byte candidate at the start of data ends
// with the footer constant. The caller guarantees len(data) >= FrameLength.
func hasFooter(data []byte) bool {
	return data[19] == frameFooter[0] && data[20] == frameFooter[1]
}
