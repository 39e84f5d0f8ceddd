// Command sigscan searches a module of a running game, or a saved capture of
// one, for a byte signature and prints each match in context. Only processes
// some registered driver watches can be attached to.
package main

import (
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"

	"splitwatch/drivers"
	"splitwatch/hexdump"
	"splitwatch/process"
	"splitwatch/process_blob"
	"splitwatch/process_host"
	"splitwatch/sigscan"
)

func main() {
	nameFlag := flag.String("name", "", "Game process to attach to, e.g. hl2.exe")
	fromFlag := flag.String("from", "", "Directory holding a capture written by -save")
	moduleFlag := flag.String("module", "", "Module to search, e.g. server.dll")
	aobFlag := flag.String("aob", "", "Signature to search for, e.g. \"55 8B EC ?? FF\"")
	offsetFlag := flag.Int("offset", 0, "Added to each match before -follow")
	followFlag := flag.String("follow", "", "Resolve each match: abs32 or rip32")
	contextFlag := flag.Int("context", 32, "Bytes of context shown around each match")
	limitFlag := flag.Int("limit", 16, "Stop after this many matches (0 for all)")
	saveFlag := flag.String("save", "", "Write the selected module (or every module) to this directory")
	plainFlag := flag.Bool("plain", false, "Disable colors")
	flag.Parse()

	proc, err := open(*nameFlag, *fromFlag)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		flag.Usage()
		os.Exit(1)
	}
	defer proc.Close()

	list, err := proc.Modules()
	if err != nil {
		fmt.Printf("Error listing modules: %v\n", err)
		os.Exit(1)
	}
	modules := process.NewModuleTable(list)

	if *saveFlag != "" {
		if err := save(proc, modules, *moduleFlag, *saveFlag); err != nil {
			fmt.Printf("Error saving capture: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Capture saved to %s\n", *saveFlag)
		if *aobFlag == "" {
			return
		}
	}

	if *aobFlag == "" || *moduleFlag == "" {
		fmt.Printf("Modules of process %d:\n", proc.GetPID())
		for _, m := range modules.All() {
			fmt.Printf("  %016x - %016x %8x %s\n", uint64(m.Base), uint64(m.End()), uint(m.Size), m.Name)
		}
		return
	}

	module, ok := modules.Get(*moduleFlag)
	if !ok {
		fmt.Printf("Error: module %s not loaded\n", *moduleFlag)
		os.Exit(1)
	}

	pattern, err := sigscan.Parse(*aobFlag)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	target := sigscan.Target{Pattern: pattern, Offset: *offsetFlag}
	switch strings.ToLower(*followFlag) {
	case "":
	case "abs32":
		target.OnFound = sigscan.Absolute32
	case "rip32":
		target.OnFound = sigscan.RIPRelative32
	default:
		fmt.Printf("Error: unknown -follow %q\n", *followFlag)
		os.Exit(1)
	}

	scanner := sigscan.NewScanner(proc, module)
	matches := scanner.ScanAll(target)
	fmt.Printf("Pattern %s (%d bytes, %d wildcards): %d matches in %s\n",
		pattern, pattern.Len(), pattern.Wildcards(), len(matches), module)
	if len(matches) == 0 {
		os.Exit(2)
	}

	for i, addr := range matches {
		if *limitFlag > 0 && i >= *limitFlag {
			fmt.Printf("... %d more\n", len(matches)-i)
			break
		}

		fmt.Printf("\n#%d 0x%x (%s+0x%x)\n", i, uint64(addr), module.Name, uint64(addr-module.Base))

		data, start, err := hexdump.Around(proc, module, addr, *contextFlag, *contextFlag+pattern.Len())
		if err != nil {
			fmt.Printf("  %v\n", err)
			continue
		}

		// a followed match points away from the signature bytes
		var spans []hexdump.Span
		if target.OnFound == nil {
			sigStart := int(addr-start) - target.Offset
			spans = append(spans, hexdump.Span{Start: sigStart, Len: pattern.Len()})
		}
		hexdump.Write(os.Stdout, data, hexdump.Options{
			Base:      uint64(start),
			Highlight: spans,
			Modules:   &modules,
			Plain:     *plainFlag,
		})
	}
}

func open(name, from string) (process.Process, error) {
	switch {
	case from != "":
		dump := process_blob.NewProcessDump(0)
		if err := dump.Load(from); err != nil {
			return nil, err
		}
		return dump, nil
	case name != "":
		allowed := watchedNames(drivers.Default())
		if !slices.ContainsFunc(allowed, func(n string) bool { return strings.EqualFold(n, name) }) {
			return nil, fmt.Errorf("%s is not watched by any driver (known: %s)", name, strings.Join(allowed, ", "))
		}
		return process_host.NewHelper().OpenProcessByName(name)
	}
	return nil, fmt.Errorf("one of -name or -from is required")
}

// watchedNames collects every process name the registered drivers attach to
func watchedNames(r *drivers.Registry) []string {
	var names []string
	for _, id := range r.IDs() {
		det, err := r.New(id)
		if err != nil {
			continue
		}
		for _, n := range det.Info().ProcessNames {
			if !slices.Contains(names, n) {
				names = append(names, n)
			}
		}
	}
	slices.Sort(names)
	return names
}

// save captures module images so later scans can run without the game
func save(proc process.Process, modules process.ModuleTable, only, dir string) error {
	dump := process_blob.NewProcessDump(proc.GetPID())

	for _, m := range modules.All() {
		if only != "" && !strings.EqualFold(m.Name, only) {
			continue
		}
		image, err := sigscan.NewScanner(proc, m).Bytes()
		if err != nil {
			fmt.Printf("  skipping %s: %v\n", m.Name, err)
			continue
		}
		dump.AddModule(m.Name, m.Base, image)
		fmt.Printf("  %s %d bytes\n", m.Name, len(image))
	}

	return dump.Save(dir)
}
