// Command fluxrecover turns raw floppy flux captures into verified sectors.
//
//	fluxrecover synth --format ibm_mfm_dd --cylinders 2 --out disk.json
//	fluxrecover decode --capture disk.json
//	fluxrecover plot --capture disk.json --track 0 --out plots/
//	fluxrecover presets
package main
