package reassemble

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// TxData is the calldata of one batcher transaction, with the L1 block that included it.
type TxData struct {
	Block uint64
	Data  []byte
}

// ReadTxDataFile reads batcher transaction data, one transaction per line in the form
// "<l1 block number> <hex data>". Empty lines and lines starting with "#" are skipped.
func ReadTxDataFile(path string) ([]TxData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open tx data file: %w", err)
	}
	defer f.Close()

	var out []TxData
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 256*1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		tx, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNum, err)
		}
		out = append(out, tx)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read tx data file %s: %w", path, err)
	}
	return out, nil
}

func parseLine(line string) (TxData, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return TxData{}, fmt.Errorf("expected block number and hex data, got %d fields", len(fields))
	}
	block, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return TxData{}, fmt.Errorf("invalid block number: %w", err)
	}
	data, err := hexutil.Decode(fields[1])
	if err != nil {
		return TxData{}, fmt.Errorf("invalid tx data: %w", err)
	}
	return TxData{Block: block, Data: data}, nil
}
