package main

import (
	"fmt"
	"os"

	"github.com/dsoprea/go-logging"
	"github.com/dustin/go-humanize"
	"github.com/jessevdk/go-flags"

	"github.com/volsys/go-exfat"
)

type rootParameters struct {
	Filepath   string `short:"f" long:"filepath" description:"File-path of exFAT filesystem" required:"true"`
	ShowDetail bool   `short:"d" long:"detail" description:"Show additional entry detail"`
}

var (
	rootArguments = new(rootParameters)
)

func main() {
	defer func() {
		if state := recover(); state != nil {
			err := log.Wrap(state.(error))
			log.PrintError(err)
			os.Exit(-1)
		}
	}()

	p := flags.NewParser(rootArguments, flags.Default)

	_, err := p.Parse()
	if err != nil {
		os.Exit(1)
	}

	f, err := os.Open(rootArguments.Filepath)
	log.PanicIf(err)

	defer f.Close()

	v, err := exfat.MountVolume(f)
	log.PanicIf(err)

	fat, err := v.ReadActiveFat()
	log.PanicIf(err)

	var currentFile *exfat.FileEntry
	var currentStream *exfat.StreamExtensionEntry
	currentName := ""

	flush := func() {
		if currentFile == nil {
			return
		}

		if currentStream != nil {
			fmt.Printf("%15s %s %s\n", humanize.Comma(int64(currentStream.ValidDataLength)), currentFile.LastModifiedTimestamp, currentName)
		} else {
			fmt.Printf("%15s %s %s\n", "?", currentFile.LastModifiedTimestamp, currentName)
		}

		if rootArguments.ShowDetail == true {
			fmt.Printf("\n")
			currentFile.Dump()

			if currentStream != nil {
				currentStream.Dump()
			}
		}

		currentFile = nil
		currentStream = nil
		currentName = ""
	}

	cb := func(de exfat.DirectoryEntry) (bool, error) {
		if de.EntryType().IsUnusedEntryMarker() == true {
			return true, nil
		}

		typed, err := de.Decode()
		log.PanicIf(err)

		switch entry := typed.(type) {
		case *exfat.VolumeLabelEntry:
			fmt.Printf("Volume label: [%s]\n", entry.Label())
			fmt.Printf("\n")
		case *exfat.FileEntry:
			flush()
			currentFile = entry
		case *exfat.StreamExtensionEntry:
			currentStream = entry
		case *exfat.FileNameEntry:
			currentName += entry.Part()
		}

		return true, nil
	}

	err = v.EnumerateDirectoryEntries(fat, v.BootSector().FirstClusterOfRootDirectory, cb)
	log.PanicIf(err)

	flush()
}
