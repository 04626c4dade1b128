package protocol

// Records is a batch of encoded records; it converts to net.Buffers
// for a single vectored write.
type Records [][]byte

func (recs Records) TotalLen() (total int) {
	for _, r := range recs {
		total += len(r)
	}
	return
}
