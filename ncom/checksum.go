package ncom

var checksumOffsets = [...]struct {
	name   string
	offset int
}{
	{"checksum1", checksum1Offset},
	{"checksum2", checksum2Offset},
	{"checksum3", checksum3Offset},
}

// Checksum is the 8 bit wrap-around sum of frame[1:end].
func Checksum(frame []byte, end int) uint8 {
	var sum uint8
	for _, b := range frame[1:end] {
		sum += b
	}
	return sum
}

func verifyChecksums(frame []byte) error {
	for _, cs := range checksumOffsets {
		want := Checksum(frame, cs.offset)
		if got := frame[cs.offset]; got != want {
			return &ProtocolError{
				Kind:     BadChecksum,
				Expected: int(want),
				Actual:   int(got),
				Offset:   cs.offset,
				Field:    cs.name,
			}
		}
	}
	return nil
}

func fillChecksums(frame []byte) {
	for _, cs := range checksumOffsets {
		frame[cs.offset] = Checksum(frame, cs.offset)
	}
}
