package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/fieldsight/pkg/dataset"
	"github.com/cyclopcam/fieldsight/pkg/nn"
	"github.com/cyclopcam/fieldsight/pkg/storage"
	"github.com/cyclopcam/logs"
	"github.com/pterm/pterm"
)

func check(err error) {
	if err != nil {
		panic(err)
	}
}

func main() {
	parser := argparse.NewParser("countset", "Count the images containing each class, in every split of a merged dataset")
	root := parser.String("d", "dataset", &argparse.Options{Help: "Merged dataset directory, or gs://bucket/prefix", Default: "merged_dataset"})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, _ := logs.NewLog()

	src, err := storage.Open(logger, *root)
	check(err)
	defer src.Close()

	// Class names come from the manifest, if there is one
	classNames := nn.ClassNames
	hasManifest, err := storage.Exists(src, dataset.ManifestName)
	check(err)
	if hasManifest {
		manifest, err := dataset.ReadManifest(src)
		check(err)
		classNames, err = manifest.ClassNames()
		check(err)
	} else {
		logger.Warnf("No %v in %v, assuming classes %v", dataset.ManifestName, *root, strings.Join(classNames, ", "))
	}

	header := []string{"Split", "Total images"}
	for _, name := range classNames {
		header = append(header, "Images with "+name)
	}
	table := pterm.TableData{header}
	for _, split := range dataset.SplitNames {
		count, err := dataset.CountClasses(src, split)
		check(err)
		row := []string{strings.ToUpper(split[:1]) + split[1:], strconv.Itoa(count.Total)}
		for id := range classNames {
			row = append(row, strconv.Itoa(count.ByClass[id]))
		}
		table = append(table, row)
	}
	check(pterm.DefaultTable.WithHasHeader().WithData(table).Render())
}
