package capture

import "fmt"

// ringSize works out an AF_PACKET PACKET_MMAP ring layout for a memory
// budget of bufferMB. The kernel requires frameSize to be a multiple of
// TPACKET_ALIGNMENT and blockSize to be a multiple of both the page size
// and frameSize.
func ringSize(bufferMB, snapLen, pageSize int) (frameSize, blockSize, numBlocks int, err error) {
	const tpacketAlignment = 16
	const tpacketHdrLen = 52 // TPACKET3_HDRLEN, rounded
	const maxBlockSize = 4 << 20

	if bufferMB <= 0 {
		return 0, 0, 0, fmt.Errorf("buffer size must be positive, got %d MB", bufferMB)
	}
	if snapLen <= 0 {
		return 0, 0, 0, fmt.Errorf("snaplen must be positive, got %d", snapLen)
	}
	if pageSize <= 0 || pageSize%tpacketAlignment != 0 {
		return 0, 0, 0, fmt.Errorf("page size must be a positive multiple of %d, got %d", tpacketAlignment, pageSize)
	}

	frameSize = alignUp(tpacketHdrLen+snapLen, tpacketAlignment)

	blockSize = lcm(pageSize, frameSize)
	if blockSize > maxBlockSize {
		// page-align the frame instead, then fill a block with frames
		frameSize = alignUp(frameSize, pageSize)
		blockSize = frameSize * max(1, maxBlockSize/frameSize)
	}

	numBlocks = (bufferMB << 20) / blockSize
	if numBlocks < 1 {
		numBlocks = 1
	}
	return frameSize, blockSize, numBlocks, nil
}

func alignUp(n, to int) int {
	return (n + to - 1) / to * to
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func lcm(a, b int) int {
	if a == 0 || b == 0 {
		return 0
	}
	return a / gcd(a, b) * b
}
