package export

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jengzang/vehicle-forensics-go/internal/wire"
)

// WritePayload writes p as indented JSON to path
func WritePayload(path string, p *wire.Payload) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode wire payload: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write wire payload: %w", err)
	}
	return nil
}
