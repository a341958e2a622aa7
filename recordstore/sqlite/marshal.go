package sqlite

import (
	"encoding/json"
	"fmt"

	"github.com/greenbaum-institute/sdc-docker/recordstore"
)

func marshalRow(b *recordstore.Bucket, r recordstore.Record) (string, error) {
	row, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encoding %s record: %w", b.Name, err)
	}
	return string(row), nil
}

func unmarshalRow(b *recordstore.Bucket, key, row string, r recordstore.Record) error {
	if err := json.Unmarshal([]byte(row), r); err != nil {
		return fmt.Errorf("decoding %s record %q: %w", b.Name, key, err)
	}
	return nil
}
