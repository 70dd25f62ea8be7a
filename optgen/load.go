package main

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/TechLord-Forever/udis86/optable"
	"gopkg.in/yaml.v3"
)

// loadRecords reads the instruction definitions of every file, in order.
func loadRecords(filenames []string) ([]optable.Record, error) {
	var ret []optable.Record
	for _, filename := range filenames {
		recs, err := loadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", filename, err)
		}
		ret = append(ret, recs...)
	}
	return ret, nil
}

func loadFile(filename string) ([]optable.Record, error) {
	r, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".xml":
		return parseOptableXML(r)
	case ".yaml", ".yml":
		return parseRecordsYAML(r)
	default:
		return nil, fmt.Errorf("unknown input format %q", ext)
	}
}

type xmlOptable struct {
	XMLName xml.Name     `xml:"x86optable"`
	Insns   []xmlInsn    `xml:"instruction"`
	Other   []xmlUnknown `xml:",any"`
}

type xmlUnknown struct {
	XMLName xml.Name
}

type xmlInsn struct {
	Mnemonic string   `xml:"mnemonic"`
	Vendor   *string  `xml:"vendor"`
	CPUID    *string  `xml:"cpuid"`
	Defs     []xmlDef `xml:"def"`
}

type xmlDef struct {
	Pfx    *string  `xml:"pfx"`
	Opc    *string  `xml:"opc"`
	Opr    *string  `xml:"opr"`
	Mode   []string `xml:"mode"`
	Vendor *string  `xml:"vendor"`
	CPUID  *string  `xml:"cpuid"`
}

// parseOptableXML reads a udis86 optable.xml document. Each <def> of an
// <instruction> is one record; its <vendor> and <cpuid> override those of
// the instruction, and the words of its <mode> elements are appended to
// its prefixes.
func parseOptableXML(r io.Reader) ([]optable.Record, error) {
	var doc xmlOptable
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, err
	}
	if len(doc.Other) > 0 {
		return nil, fmt.Errorf("invalid insn node <%s>", doc.Other[0].XMLName.Local)
	}

	var ret []optable.Record
	for _, insn := range doc.Insns {
		mnemonic := strings.TrimSpace(insn.Mnemonic)
		for _, def := range insn.Defs {
			rec := optable.Record{
				Mnemonic: mnemonic,
				Prefixes: fields(def.Pfx),
				Opcodes:  fields(def.Opc),
				Operands: fields(def.Opr),
				Vendor:   fields(insn.Vendor),
				CPUID:    fields(insn.CPUID),
			}
			for _, mode := range def.Mode {
				rec.Prefixes = append(rec.Prefixes, strings.Fields(mode)...)
			}
			if def.Vendor != nil {
				rec.Vendor = fields(def.Vendor)
			}
			if def.CPUID != nil {
				rec.CPUID = fields(def.CPUID)
			}
			ret = append(ret, rec)
		}
	}
	return ret, nil
}

func fields(s *string) []string {
	if s == nil {
		return nil
	}
	return strings.Fields(*s)
}

// parseRecordsYAML reads a YAML sequence of records.
func parseRecordsYAML(r io.Reader) ([]optable.Record, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var ret []optable.Record
	if err := dec.Decode(&ret); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return ret, nil
}
