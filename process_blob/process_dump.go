package process_blob

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"splitwatch/process"
)

// RemoteFunc stands in for code living at an address inside the target
type RemoteFunc func(p *ProcessDump, arg process.ProcessMemoryAddress) uint32

// ProcessDump implements process.Process over in-memory blobs. It backs
// offline scans of saved dumps and every test that needs a target.
type ProcessDump struct {
	PID  process.ProcessID
	Name string

	mu        sync.Mutex
	regions   []*ProcessBlob
	modules   []process.Module
	running   bool
	readErr   error
	reads     int
	threads   int
	nextAlloc process.ProcessMemoryAddress
	funcs     map[process.ProcessMemoryAddress]RemoteFunc
}

var (
	_ process.Process        = (*ProcessDump)(nil)
	_ process.RemoteExecutor = (*ProcessDump)(nil)
)

// NewProcessDump creates a running, empty process
func NewProcessDump(pid process.ProcessID) *ProcessDump {
	return &ProcessDump{
		PID:       pid,
		running:   true,
		nextAlloc: 0x70000000,
		funcs:     make(map[process.ProcessMemoryAddress]RemoteFunc),
	}
}

func (p *ProcessDump) Open(pid process.ProcessID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.PID = pid
	p.running = true
	return nil
}

func (p *ProcessDump) Close() error {
	return nil
}

func (p *ProcessDump) GetPID() process.ProcessID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.PID
}

func (p *ProcessDump) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// SetRunning simulates the target exiting or coming back
func (p *ProcessDump) SetRunning(running bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running = running
}

// SetReadError makes every read fail with err until cleared with nil
func (p *ProcessDump) SetReadError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readErr = err
}

// ReadCount is the number of ReadMemory calls served or refused
func (p *ProcessDump) ReadCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reads
}

// ThreadCount is the number of remote threads started
func (p *ProcessDump) ThreadCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.threads
}

func (p *ProcessDump) Modules() ([]process.Module, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return nil, process.ErrProcessExited
	}
	out := make([]process.Module, len(p.modules))
	copy(out, p.modules)
	return out, nil
}

// AddRegion maps data at base
func (p *ProcessDump) AddRegion(base process.ProcessMemoryAddress, data []byte) *ProcessBlob {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.addRegionLocked(base, data)
}

func (p *ProcessDump) addRegionLocked(base process.ProcessMemoryAddress, data []byte) *ProcessBlob {
	blob := NewProcessBlob(base, data)
	p.regions = append(p.regions, blob)
	sort.Slice(p.regions, func(i, j int) bool {
		return p.regions[i].Base() < p.regions[j].Base()
	})
	return blob
}

// AddModule maps image as a module named name
func (p *ProcessDump) AddModule(name string, base process.ProcessMemoryAddress, image []byte) *ProcessBlob {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.modules = append(p.modules, process.Module{
		Name: name,
		Path: name,
		Base: base,
		Size: process.ProcessMemorySize(len(image)),
	})
	return p.addRegionLocked(base, image)
}

// RegisterFunction installs fn as the code reached by a remote thread starting at addr
func (p *ProcessDump) RegisterFunction(addr process.ProcessMemoryAddress, fn RemoteFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.funcs[addr] = fn
}

func (p *ProcessDump) findRegion(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) *ProcessBlob {
	i := sort.Search(len(p.regions), func(i int) bool {
		return p.regions[i].End() > addr
	})
	if i < len(p.regions) && p.regions[i].Contains(addr, size) {
		return p.regions[i]
	}
	return nil
}

func (p *ProcessDump) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.reads++
	if !p.running {
		return nil, process.ErrProcessExited
	}
	if p.readErr != nil {
		return nil, p.readErr
	}
	if size == 0 {
		return []byte{}, nil
	}

	region := p.findRegion(addr, size)
	if region == nil {
		return nil, fmt.Errorf("read %d bytes at %s: %w", size, addr.ToString(), process.ErrAddressNotMapped)
	}
	return region.ReadMemory(addr, size)
}

func (p *ProcessDump) WriteMemory(addr process.ProcessMemoryAddress, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return process.ErrProcessExited
	}
	if len(data) == 0 {
		return nil
	}

	region := p.findRegion(addr, process.ProcessMemorySize(len(data)))
	if region == nil {
		return fmt.Errorf("write %d bytes at %s: %w", len(data), addr.ToString(), process.ErrAddressNotMapped)
	}
	return region.WriteMemory(addr, data)
}

func (p *ProcessDump) AllocRemote(size process.ProcessMemorySize) (process.ProcessMemoryAddress, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return 0, process.ErrProcessExited
	}

	base := p.nextAlloc
	pages := (uint64(size) + 0xfff) &^ 0xfff
	if pages == 0 {
		pages = 0x1000
	}
	p.nextAlloc += process.ProcessMemoryAddress(pages)
	p.addRegionLocked(base, make([]byte, pages))
	return base, nil
}

func (p *ProcessDump) FreeRemote(addr process.ProcessMemoryAddress) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, region := range p.regions {
		if region.Base() == addr {
			p.regions = append(p.regions[:i], p.regions[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("free %s: %w", addr.ToString(), process.ErrAddressNotMapped)
}

func (p *ProcessDump) RunRemoteThread(start, arg process.ProcessMemoryAddress, timeout time.Duration) (uint32, error) {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return 0, process.ErrProcessExited
	}
	fn, ok := p.funcs[start]
	p.threads++
	p.mu.Unlock()

	if !ok {
		return 0, fmt.Errorf("no code at %s", start.ToString())
	}

	done := make(chan uint32, 1)
	go func() {
		done <- fn(p, arg)
	}()

	select {
	case code := <-done:
		return code, nil
	case <-time.After(timeout):
		return 0, fmt.Errorf("%w: not finished within %s", process.ErrRemoteStillRunning, timeout)
	}
}

type dumpMetadata struct {
	PID     process.ProcessID `json:"pid"`
	Name    string            `json:"name"`
	Modules []process.Module  `json:"modules"`
}

// Save writes the metadata and every region into dirname
func (p *ProcessDump) Save(dirname string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := os.MkdirAll(dirname, 0o755); err != nil {
		return fmt.Errorf("failed to create dump dir: %w", err)
	}

	metadata, err := json.MarshalIndent(dumpMetadata{PID: p.PID, Name: p.Name, Modules: p.modules}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dirname, "metadata.json"), metadata, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	for _, region := range p.regions {
		filename := filepath.Join(dirname, fmt.Sprintf("blob_0x%x_%d.bin", uint64(region.Base()), len(region.Data())))
		if err := os.WriteFile(filename, region.Data(), 0o644); err != nil {
			return fmt.Errorf("failed to write blob %s: %w", filename, err)
		}
	}

	return nil
}

// Load replaces the current contents with a dump written by Save
func (p *ProcessDump) Load(dirname string) error {
	metadataBytes, err := os.ReadFile(filepath.Join(dirname, "metadata.json"))
	if err != nil {
		return fmt.Errorf("failed to read metadata: %w", err)
	}

	var metadata dumpMetadata
	if err := json.Unmarshal(metadataBytes, &metadata); err != nil {
		return fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	blobs, err := filepath.Glob(filepath.Join(dirname, "blob_0x*.bin"))
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.PID = metadata.PID
	p.Name = metadata.Name
	p.modules = metadata.Modules
	p.regions = nil
	p.running = true

	for _, filename := range blobs {
		var base uint64
		var size int
		if _, err := fmt.Sscanf(filepath.Base(filename), "blob_0x%x_%d.bin", &base, &size); err != nil {
			return fmt.Errorf("bad blob name %s: %w", filename, err)
		}

		data, err := os.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("failed to read blob %s: %w", filename, err)
		}
		if len(data) != size {
			return fmt.Errorf("blob %s is %d bytes, expected %d", filename, len(data), size)
		}

		p.addRegionLocked(process.ProcessMemoryAddress(base), data)
	}

	return nil
}
