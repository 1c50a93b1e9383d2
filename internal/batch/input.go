package batch

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/certforge/certforge/internal/template"
)

// LoadRecipients reads a recipients file. JSON/JSONL files carry one
// recipient object per line; anything else is parsed as CSV with a header
// row. CSV name columns are matched loosely (first_name/first/firstname);
// remaining columns become extra role values keyed by header name.
func LoadRecipients(path string) ([]template.Recipient, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".json") || strings.HasSuffix(lower, ".jsonl") {
		return loadJSONLRecipients(file)
	}
	return loadCSVRecipients(file)
}

func loadJSONLRecipients(file *os.File) ([]template.Recipient, error) {
	var recipients []template.Recipient
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var rec template.Recipient
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		recipients = append(recipients, rec)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return recipients, nil
}

var (
	firstNameHeaders = map[string]bool{"first_name": true, "first": true, "firstname": true, "given_name": true}
	lastNameHeaders  = map[string]bool{"last_name": true, "last": true, "lastname": true, "surname": true}
)

func loadCSVRecipients(file *os.File) ([]template.Recipient, error) {
	r := csv.NewReader(file)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	firstIdx, lastIdx := -1, -1
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		header[i] = key
		switch {
		case firstNameHeaders[key] && firstIdx < 0:
			firstIdx = i
		case lastNameHeaders[key] && lastIdx < 0:
			lastIdx = i
		}
	}
	if firstIdx < 0 || lastIdx < 0 {
		return nil, fmt.Errorf("header must contain first and last name columns, got %v", header)
	}

	var recipients []template.Recipient
	line := 1
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line+1, err)
		}
		line++

		rec := template.Recipient{}
		for i, val := range row {
			if i >= len(header) {
				break
			}
			val = strings.TrimSpace(val)
			switch i {
			case firstIdx:
				rec.FirstName = val
			case lastIdx:
				rec.LastName = val
			default:
				if val != "" {
					if rec.ExtraFields == nil {
						rec.ExtraFields = make(map[string]string)
					}
					rec.ExtraFields[header[i]] = val
				}
			}
		}
		recipients = append(recipients, rec)
	}

	return recipients, nil
}
