// Package prospekt detects Prospekt runs from camera hand-offs on the first
// and last maps.
package prospekt

import (
	"splitwatch/game"
)

const (
	ID = "prospekt"

	startCamName = "secondary_camera"
	endCamName   = "background_camera1"
)

type Driver struct {
	game.Base

	startCam int
	endCam   int
	latch    game.Latch
}

func New() *Driver {
	return &Driver{
		Base: game.NewBase(game.Info{
			ID:                 ID,
			ProcessNames:       []string{"hl2.exe"},
			FirstMaps:          []string{"pxg_level_01_fg"},
			LastMaps:           []string{"pxg_finallevel01a"},
			RequiredProperties: game.PropertyViewEntity,
			TimingMethod:       game.EngineTicksWithPauses,
		}),
		startCam: -1,
		endCam:   -1,
	}
}

func (d *Driver) OnSessionStart(state *game.GameState) {
	d.Base.OnSessionStart(state)
	d.latch.Reset()
	d.startCam, d.endCam = -1, -1

	if d.IsFirstMap() {
		d.startCam = state.GetEntIndexByName(startCamName)
	}
	if d.IsLastMap() {
		d.endCam = state.GetEntIndexByName(endCamName)
	}
}

func (d *Driver) OnUpdate(state *game.GameState) game.Result {
	if d.latch.Fired() {
		return game.Result{}
	}

	view := state.PlayerViewEntityIndex

	if d.endCam > 0 && view.Current == int32(d.endCam) && view.Old == 1 {
		d.latch.Fire()
		return game.End(0)
	}

	if d.startCam > 0 && view.Current == 1 && view.Old == int32(d.startCam) {
		d.latch.Fire()
		return game.Start(0)
	}

	return game.Result{}
}
