package transfer

import (
	"errors"
	"fmt"
	"io"

	"github.com/gogogo1024/filegate/protocol"
)

// EmitChunks streams f to w as RESPONSE_CHUNK frames followed by one
// RESPONSE_LAST_CHUNK. Chunk payloads are MaxPayloadSize bytes except the last.
// An empty file is sent as a single empty last chunk.
//
// The first failed write stops the transfer; a best-effort ERROR response
// with ErrSendFailed follows it and the returned error wraps ErrSendFailed.
// A read failure is reported to the peer as ErrFileOpenFailed.
func EmitChunks(w io.Writer, f File) error {
	size := f.Size()
	total := protocol.TotalChunks(size)
	buf := make([]byte, protocol.MaxPayloadSize)
	remaining := size

	for i := 0; i < total; i++ {
		want := min(remaining, int64(protocol.MaxPayloadSize))
		n, err := io.ReadFull(f, buf[:want])
		if err != nil {
			readErr := fmt.Errorf("%w: read chunk %d: %v", protocol.ErrFileOpenFailed, i, err)
			if sendErr := SendError(w, protocol.CmdRequestFile, protocol.ErrFileOpenFailed, "Failed to read file"); sendErr != nil {
				return errors.Join(readErr, sendErr)
			}
			return readErr
		}
		remaining -= int64(n)

		typ := protocol.TypeResponseChunk
		if i == total-1 {
			typ = protocol.TypeResponseLastChunk
		}
		msg, err := protocol.EncodePayload(protocol.Header{
			MessageType: typ,
			Command:     protocol.CmdRequestFile,
			ChunkIndex:  uint32(i),
			Status:      protocol.StatusOK,
			ErrorCode:   protocol.ErrorCodeNotSet,
		}, buf[:n])
		if err != nil {
			return err
		}
		if err := WriteMessage(w, msg); err != nil {
			_ = SendError(w, protocol.CmdRequestFile, protocol.ErrSendFailed, fmt.Sprintf("Failed to send chunk %d of %d", i, total))
			return err
		}
	}
	return nil
}
