package storage

import (
	"bytes"
	"fmt"

	json "github.com/goccy/go-json"

	"mcsr-analyzer/internal/mcsr"
)

// StatusSuccess is the status tag written for every user touched by a fetch run
const StatusSuccess = "success"

// UserMatches is the stored record list for one username.
// Keys other than status and data are kept as read and written back in their original position.
type UserMatches struct {
	Status string
	Data   []mcsr.Match

	keys  []string // key order as read
	extra map[string]json.RawMessage
}

// UnmarshalJSON reads a user entry, keeping unknown keys and key order
func (u *UserMatches) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected object, got %v", tok)
	}

	fresh := UserMatches{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected key, got %v", tok)
		}
		if fresh.has(key) {
			// first occurrence wins; consume the repeated value
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return err
			}
			continue
		}

		switch key {
		case "status":
			err = dec.Decode(&fresh.Status)
		case "data":
			err = dec.Decode(&fresh.Data)
		default:
			var raw json.RawMessage
			err = dec.Decode(&raw)
			if fresh.extra == nil {
				fresh.extra = make(map[string]json.RawMessage)
			}
			fresh.extra[key] = raw
		}
		if err != nil {
			return fmt.Errorf("failed to decode %q: %w", key, err)
		}
		fresh.keys = append(fresh.keys, key)
	}

	*u = fresh
	return nil
}

// MarshalJSON writes keys in the order they were read. Status and data are added
// when set but absent from the original entry; a nil data list is never invented.
func (u UserMatches) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	n := 0
	write := func(key string, val []byte) {
		if n > 0 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(key)
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(val)
		n++
	}

	for _, key := range u.keys {
		var val []byte
		var err error
		switch key {
		case "status":
			val, err = json.Marshal(u.Status)
		case "data":
			val, err = json.Marshal(u.Data)
		default:
			val = u.extra[key]
		}
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %q: %w", key, err)
		}
		write(key, val)
	}

	if !u.has("status") && u.Status != "" {
		val, _ := json.Marshal(u.Status)
		write("status", val)
	}
	if !u.has("data") && u.Data != nil {
		val, err := json.Marshal(u.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal data: %w", err)
		}
		write("data", val)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (u *UserMatches) has(key string) bool {
	for _, k := range u.keys {
		if k == key {
			return true
		}
	}
	return false
}

// Collection maps username -> UserMatches and remembers key order,
// so a load/save round trip leaves the file layout unchanged
type Collection struct {
	users map[string]*UserMatches
	order []string
}

// NewCollection creates an empty collection
func NewCollection() *Collection {
	return &Collection{
		users: make(map[string]*UserMatches),
	}
}

// Usernames returns the usernames in stored order
func (c *Collection) Usernames() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Get returns the stored entry for a username
func (c *Collection) Get(username string) (*UserMatches, bool) {
	um, ok := c.users[username]
	return um, ok
}

// Set replaces the entry for a username, keeping its position if it already exists
func (c *Collection) Set(username string, um *UserMatches) {
	if _, ok := c.users[username]; !ok {
		c.order = append(c.order, username)
	}
	c.users[username] = um
}

// Len returns the number of users
func (c *Collection) Len() int {
	return len(c.order)
}

// TotalMatches counts records across all users (duplicates included)
func (c *Collection) TotalMatches() int {
	total := 0
	for _, name := range c.order {
		total += len(c.users[name].Data)
	}
	return total
}

// Each calls fn for every user in stored order
func (c *Collection) Each(fn func(username string, um *UserMatches)) {
	for _, name := range c.order {
		fn(name, c.users[name])
	}
}

// EachMatch calls fn for every record of every user, in stored order
func (c *Collection) EachMatch(fn func(username string, m *mcsr.Match)) {
	for _, name := range c.order {
		um := c.users[name]
		for i := range um.Data {
			fn(name, &um.Data[i])
		}
	}
}

// MarshalJSON writes users as a JSON object in stored order
func (c *Collection) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range c.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(c.users[name])
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s: %w", name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object keeping key order
func (c *Collection) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected object, got %v", tok)
	}

	fresh := NewCollection()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected username key, got %v", tok)
		}

		var um UserMatches
		if err := dec.Decode(&um); err != nil {
			return fmt.Errorf("failed to decode matches for %s: %w", name, err)
		}
		fresh.Set(name, &um)
	}

	*c = *fresh
	return nil
}
