package pattern

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"

	"github.com/cbegin/pigeon-go/internal/debug"
)

// SlotsPerBank is the number of slots in each bank.
const SlotsPerBank = 8

// BankNames lists the banks in display order.
var BankNames = []string{"A", "B", "C"}

//go:embed factory/*.json
var factoryFS embed.FS

// Notice is a non-fatal message for the user, such as a corrupt store that
// was replaced by the factory patterns.
type Notice struct {
	Message string
	Err     error
}

func (n *Notice) String() string {
	if n == nil {
		return ""
	}
	return n.Message
}

// Bank is the persisted pattern bank: named banks of fixed slots, each empty
// or holding a Document. The whole store lives in one JSON file.
type Bank struct {
	mu    sync.Mutex
	path  string
	slots map[string][]*Document
}

// OpenBank loads the store at path. A missing file yields the factory
// patterns. A file that cannot be parsed is discarded and replaced by the
// factory patterns. A damaged slot inside a readable file is cleared and the
// rest kept. Either way the returned Notice tells the user. An empty path
// keeps the bank in memory only.
func OpenBank(path string) (*Bank, *Notice, error) {
	b := &Bank{path: path}
	if path == "" {
		b.slots = factory()
		return b, nil, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		b.slots = factory()
		return b, nil, nil
	}
	if err != nil {
		return nil, nil, fault.Wrap(err,
			fmsg.WithDesc("read pattern bank", "The pattern bank could not be opened."),
			ftag.With(ftag.Internal))
	}
	slots, dropped, perr := decodeStore(data)
	if perr == nil {
		b.slots = slots
		if len(dropped) == 0 {
			return b, nil, nil
		}
		notice := &Notice{
			Message: "Damaged patterns were cleared: " + strings.Join(dropped, ", ") + ".",
			Err:     fault.New("damaged slots: " + strings.Join(dropped, ", ")),
		}
		if err := b.Flush(); err != nil {
			return b, notice, err
		}
		return b, notice, nil
	}

	debug.Log("bank", "corrupt store %s: %v", path, perr)
	b.slots = factory()
	notice := &Notice{
		Message: "The saved pattern bank was damaged and has been reset to the factory patterns.",
		Err:     perr,
	}
	if err := b.Flush(); err != nil {
		return b, notice, err
	}
	return b, notice, nil
}

// decodeStore parses the store file. It fails only when the file is not a
// JSON object; banks and slots that cannot be read are left empty and named
// in dropped, e.g. "C1" or "bank B".
func decodeStore(data []byte) (slots map[string][]*Document, dropped []string, err error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, err
	}
	slots = emptySlots()
	for name, bank := range raw {
		if _, ok := slots[name]; !ok {
			continue
		}
		var entries []json.RawMessage
		if err := json.Unmarshal(bank, &entries); err != nil {
			debug.Log("bank", "dropping bank %s: %v", name, err)
			dropped = append(dropped, "bank "+name)
			continue
		}
		for i, msg := range entries {
			if i >= SlotsPerBank {
				break
			}
			if isNull(msg) {
				continue
			}
			doc, err := Decode(msg)
			if err != nil {
				debug.Log("bank", "dropping slot %s%d: %v", name, i+1, err)
				dropped = append(dropped, fmt.Sprintf("%s%d", name, i+1))
				continue
			}
			slots[name][i] = &doc
		}
	}
	sort.Strings(dropped)
	return slots, dropped, nil
}

func emptySlots() map[string][]*Document {
	slots := make(map[string][]*Document, len(BankNames))
	for _, n := range BankNames {
		slots[n] = make([]*Document, SlotsPerBank)
	}
	return slots
}

// factory returns the embedded patterns. Files are named by bank and
// one-based slot, e.g. A1.json.
func factory() map[string][]*Document {
	slots := emptySlots()
	entries, _ := fs.ReadDir(factoryFS, "factory")
	for _, e := range entries {
		name := strings.TrimSuffix(e.Name(), ".json")
		if len(name) < 2 {
			continue
		}
		bank, slot := strings.ToUpper(name[:1]), name[1:]
		n, err := strconv.Atoi(slot)
		if err != nil || n < 1 || n > SlotsPerBank || slots[bank] == nil {
			continue
		}
		data, err := factoryFS.ReadFile(path.Join("factory", e.Name()))
		if err != nil {
			continue
		}
		doc, err := Decode(data)
		if err != nil {
			debug.Log("bank", "factory pattern %s: %v", e.Name(), err)
			continue
		}
		slots[bank][n-1] = &doc
	}
	return slots
}

func (b *Bank) check(bank string, slot int) error {
	if _, ok := b.slots[bank]; !ok || slot < 0 || slot >= SlotsPerBank {
		return fault.New(fmt.Sprintf("no slot %s%d", bank, slot+1),
			fmsg.WithDesc("invalid bank slot", fmt.Sprintf("There is no slot %s%d.", bank, slot+1)),
			ftag.With(ftag.InvalidArgument))
	}
	return nil
}

// Save stores doc in the zero-based slot of bank and writes the store.
func (b *Bank) Save(bank string, slot int, doc Document) error {
	b.mu.Lock()
	if err := b.check(bank, slot); err != nil {
		b.mu.Unlock()
		return err
	}
	b.slots[bank][slot] = &doc
	b.mu.Unlock()
	return b.Flush()
}

// Load returns the document in the zero-based slot of bank.
func (b *Bank) Load(bank string, slot int) (Document, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check(bank, slot); err != nil {
		return Document{}, err
	}
	doc := b.slots[bank][slot]
	if doc == nil {
		return Document{}, fault.New(fmt.Sprintf("slot %s%d is empty", bank, slot+1),
			fmsg.WithDesc("empty slot", fmt.Sprintf("Slot %s%d is empty.", bank, slot+1)),
			ftag.With(ftag.NotFound))
	}
	return *doc, nil
}

// Clear empties the zero-based slot of bank and writes the store.
func (b *Bank) Clear(bank string, slot int) error {
	b.mu.Lock()
	if err := b.check(bank, slot); err != nil {
		b.mu.Unlock()
		return err
	}
	b.slots[bank][slot] = nil
	b.mu.Unlock()
	return b.Flush()
}

// Filled reports which slots of bank hold a pattern.
func (b *Bank) Filled(bank string) []bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]bool, SlotsPerBank)
	for i, d := range b.slots[bank] {
		out[i] = d != nil
	}
	return out
}

// Reset replaces every slot with the factory patterns and writes the store.
func (b *Bank) Reset() error {
	b.mu.Lock()
	b.slots = factory()
	b.mu.Unlock()
	return b.Flush()
}

// Path returns the store location, empty for an in-memory bank.
func (b *Bank) Path() string { return b.path }

// Flush writes the store. The file is replaced atomically.
func (b *Bank) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(b.slots, "", "  ")
	if err != nil {
		return fault.Wrap(err, fmsg.With("encode pattern bank"), ftag.With(ftag.Internal))
	}
	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return writeErr(err)
	}
	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return writeErr(err)
	}
	if err := os.Rename(tmp, b.path); err != nil {
		return writeErr(err)
	}
	return nil
}

func writeErr(err error) error {
	return fault.Wrap(err,
		fmsg.WithDesc("write pattern bank", "The pattern bank could not be saved."),
		ftag.With(ftag.Internal))
}
