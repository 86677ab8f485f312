package core

import (
	"fmt"
	"sort"
)

// SymbolResolver provides address-to-symbol lookup for disassembly and
// trace output. It maintains both forward (name->address) and reverse
// (address->name) mappings and can resolve an address to the nearest
// symbol at or before it, with offset.
type SymbolResolver struct {
	symbols map[string]uint64

	addressToSymbol map[uint64]string

	// sortedAddresses supports nearest-symbol lookup via binary search.
	sortedAddresses []uint64
}

// NewSymbolResolver creates a resolver from a symbol table: label names
// mapped to their addresses, as produced by loading an ELF symbol table.
func NewSymbolResolver(symbols map[string]uint64) *SymbolResolver {
	if symbols == nil {
		symbols = make(map[string]uint64)
	}

	addressToSymbol := make(map[uint64]string)
	for name, addr := range symbols {
		addressToSymbol[addr] = name
	}

	sortedAddresses := make([]uint64, 0, len(addressToSymbol))
	for addr := range addressToSymbol {
		sortedAddresses = append(sortedAddresses, addr)
	}
	sort.Slice(sortedAddresses, func(i, j int) bool {
		return sortedAddresses[i] < sortedAddresses[j]
	})

	return &SymbolResolver{
		symbols:         symbols,
		addressToSymbol: addressToSymbol,
		sortedAddresses: sortedAddresses,
	}
}

// LookupAddress returns the exact symbol name for an address, or "" if none.
func (sr *SymbolResolver) LookupAddress(address uint64) string {
	return sr.addressToSymbol[address]
}

// LookupSymbol returns the address bound to name, if any.
func (sr *SymbolResolver) LookupSymbol(name string) (uint64, bool) {
	addr, ok := sr.symbols[name]
	return addr, ok
}

// ResolveAddress resolves address to the nearest symbol at or before it,
// returning the symbol name, the byte offset past it, and whether any
// symbol was found at all.
func (sr *SymbolResolver) ResolveAddress(address uint64) (symbolName string, offset uint64, found bool) {
	if name, ok := sr.addressToSymbol[address]; ok {
		return name, 0, true
	}

	if len(sr.sortedAddresses) == 0 {
		return "", 0, false
	}

	idx := sort.Search(len(sr.sortedAddresses), func(i int) bool {
		return sr.sortedAddresses[i] > address
	})
	if idx == 0 {
		return "", 0, false
	}

	nearestAddr := sr.sortedAddresses[idx-1]
	symbolName = sr.addressToSymbol[nearestAddr]
	offset = address - nearestAddr
	return symbolName, offset, true
}

// FormatAddress renders "symbol+offset (0x...)" when a symbol resolves, or
// just the hex address otherwise.
func (sr *SymbolResolver) FormatAddress(address uint64) string {
	symbolName, offset, found := sr.ResolveAddress(address)
	if !found {
		return fmt.Sprintf("0x%016x", address)
	}
	if offset == 0 {
		return fmt.Sprintf("%s (0x%016x)", symbolName, address)
	}
	return fmt.Sprintf("%s+%d (0x%016x)", symbolName, offset, address)
}

// FormatAddressCompact renders "symbol+offset" without the hex address, or
// just the hex address when nothing resolves.
func (sr *SymbolResolver) FormatAddressCompact(address uint64) string {
	symbolName, offset, found := sr.ResolveAddress(address)
	if !found {
		return fmt.Sprintf("0x%016x", address)
	}
	if offset == 0 {
		return symbolName
	}
	return fmt.Sprintf("%s+%d", symbolName, offset)
}

// HasSymbols reports whether any symbols were loaded.
func (sr *SymbolResolver) HasSymbols() bool {
	return len(sr.symbols) > 0
}

// GetSymbolCount returns the number of symbols known.
func (sr *SymbolResolver) GetSymbolCount() int {
	return len(sr.symbols)
}

// GetAllSymbols returns a defensive copy of the symbol table.
func (sr *SymbolResolver) GetAllSymbols() map[string]uint64 {
	result := make(map[string]uint64, len(sr.symbols))
	for name, addr := range sr.symbols {
		result[name] = addr
	}
	return result
}
