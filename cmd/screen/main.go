// Command screen renders one vertical band of the shared world on a single
// display. Every screen receives the same snapshot stream; the -screen index
// is the only thing that differs between instances.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"image/color"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"galaxy-snake/internal/net/proto"
	"galaxy-snake/internal/sim"
	"galaxy-snake/internal/viewport"
)

const (
	configFetchTimeout = 5 * time.Second
	reconnectBaseWait  = 500 * time.Millisecond
	reconnectMaxWait   = 8 * time.Second
)

var (
	backgroundColor = color.RGBA{R: 0x10, G: 0x14, B: 0x1c, A: 0xff}
	snakeColor      = color.RGBA{R: 0x3c, G: 0xc8, B: 0x5a, A: 0xff}
	headColor       = color.RGBA{R: 0x78, G: 0xf0, B: 0x96, A: 0xff}
	foodColor       = color.RGBA{R: 0xe6, G: 0x50, B: 0x50, A: 0xff}
	seamColor       = color.RGBA{R: 0x28, G: 0x30, B: 0x3c, A: 0xff}
)

func main() {
	var (
		screenIndex = flag.Int("screen", 1, "1-based index of this screen in the stack")
		serverAddr  = flag.String("server", "localhost:8080", "host:port of the simulation server")
		scale       = flag.Float64("scale", 0.4, "window scale relative to the native band size")
	)
	flag.Parse()

	world, err := fetchWorldConfig(*serverAddr)
	if err != nil {
		log.Fatalf("fetching world config from %s: %v", *serverAddr, err)
	}
	if *screenIndex < 1 || *screenIndex > world.ScreenCount {
		log.Fatalf("screen %d out of range: the world has %d screens", *screenIndex, world.ScreenCount)
	}

	feed := newSnapshotFeed(*serverAddr, *screenIndex)
	go feed.run()

	game := &game{
		screenIndex: *screenIndex,
		world:       world,
		mapper:      viewport.NewMapper(world),
		feed:        feed,
	}

	ebiten.SetWindowSize(
		int(float64(world.ScreenWidth)*(*scale)),
		int(float64(world.ScreenHeight)*(*scale)),
	)
	ebiten.SetWindowTitle(fmt.Sprintf("galaxy-snake screen %d/%d", *screenIndex, world.ScreenCount))
	ebiten.SetTPS(world.TickRate)

	if err := ebiten.RunGame(game); err != nil {
		log.Fatalf("renderer exited: %v", err)
	}
}

// fetchWorldConfig pulls the authoritative world configuration so every
// screen tiles with exactly the same geometry the server simulates.
func fetchWorldConfig(addr string) (sim.WorldConfig, error) {
	client := &http.Client{Timeout: configFetchTimeout}
	resp, err := client.Get("http://" + addr + "/config")
	if err != nil {
		return sim.WorldConfig{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return sim.WorldConfig{}, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var cfg sim.WorldConfig
	if err := json.NewDecoder(resp.Body).Decode(&cfg); err != nil {
		return sim.WorldConfig{}, err
	}
	return cfg.Normalized(), nil
}

// snapshotFeed owns the websocket. A reader goroutine keeps the latest
// snapshot available to the render loop; commands go out on whichever
// connection is currently live, and reconnects back off exponentially.
type snapshotFeed struct {
	url string

	mu     sync.Mutex
	conn   *websocket.Conn
	latest *proto.StateMessage
	online bool
}

func newSnapshotFeed(addr string, screenIndex int) *snapshotFeed {
	return &snapshotFeed{
		url: fmt.Sprintf("ws://%s/ws?screen=%d", addr, screenIndex),
	}
}

func (f *snapshotFeed) run() {
	wait := reconnectBaseWait
	for {
		conn, _, err := websocket.DefaultDialer.Dial(f.url, nil)
		if err != nil {
			log.Printf("connect failed, retrying in %s: %v", wait, err)
			time.Sleep(wait)
			if wait *= 2; wait > reconnectMaxWait {
				wait = reconnectMaxWait
			}
			continue
		}
		wait = reconnectBaseWait

		f.mu.Lock()
		f.conn = conn
		f.online = true
		f.mu.Unlock()

		f.readUntilClosed(conn)

		f.mu.Lock()
		f.conn = nil
		f.online = false
		f.mu.Unlock()
	}
}

func (f *snapshotFeed) readUntilClosed(conn *websocket.Conn) {
	defer conn.Close()
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			log.Printf("connection lost: %v", err)
			return
		}
		var msg proto.StateMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			log.Printf("discarding malformed snapshot: %v", err)
			continue
		}
		if msg.Type != proto.TypeState {
			continue
		}
		f.mu.Lock()
		f.latest = &msg
		f.mu.Unlock()
	}
}

// Latest returns the newest snapshot and whether the feed is connected.
func (f *snapshotFeed) Latest() (*proto.StateMessage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest, f.online
}

// Send fires a client message at the server. Messages composed while
// disconnected are dropped; the next snapshot heals any missed state.
func (f *snapshotFeed) Send(msg proto.ClientMessage) {
	msg.Ver = proto.ProtocolVersion
	msg.SentAt = time.Now().UnixMilli()

	f.mu.Lock()
	conn := f.conn
	f.mu.Unlock()
	if conn == nil {
		return
	}
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("send failed: %v", err)
	}
}

type game struct {
	screenIndex int
	world       sim.WorldConfig
	mapper      viewport.Mapper
	feed        *snapshotFeed
}

var directionKeys = []struct {
	key ebiten.Key
	dir proto.Direction
}{
	{ebiten.KeyArrowUp, proto.Direction{Y: -1}},
	{ebiten.KeyW, proto.Direction{Y: -1}},
	{ebiten.KeyArrowDown, proto.Direction{Y: 1}},
	{ebiten.KeyS, proto.Direction{Y: 1}},
	{ebiten.KeyArrowLeft, proto.Direction{X: -1}},
	{ebiten.KeyA, proto.Direction{X: -1}},
	{ebiten.KeyArrowRight, proto.Direction{X: 1}},
	{ebiten.KeyD, proto.Direction{X: 1}},
}

func (g *game) Update() error {
	for _, binding := range directionKeys {
		if inpututil.IsKeyJustPressed(binding.key) {
			dir := binding.dir
			g.feed.Send(proto.ClientMessage{Type: proto.TypeInput, Direction: &dir})
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		g.feed.Send(proto.ClientMessage{Type: proto.TypeStart})
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		g.feed.Send(proto.ClientMessage{Type: proto.TypePause})
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyO) {
		g.feed.Send(proto.ClientMessage{Type: proto.TypeResume})
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		g.feed.Send(proto.ClientMessage{Type: proto.TypeReset})
	}
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	screen.Fill(backgroundColor)

	snapshot, online := g.feed.Latest()
	if snapshot == nil {
		ebitenutil.DebugPrint(screen, fmt.Sprintf("screen %d: waiting for server...", g.screenIndex))
		return
	}

	cell := float32(snapshot.CellSize)

	// Seam markers at the top and bottom band edges make misalignment
	// between physical screens obvious during rig calibration.
	if g.screenIndex > 1 {
		vector.DrawFilledRect(screen, 0, 0, float32(g.world.ScreenWidth), 2, seamColor, false)
	}
	if g.screenIndex < g.world.ScreenCount {
		vector.DrawFilledRect(screen, 0, float32(g.world.ScreenHeight)-2, float32(g.world.ScreenWidth), 2, seamColor, false)
	}

	for _, food := range snapshot.Food {
		local := g.mapper.ToLocal(g.screenIndex, food)
		if !g.mapper.Visible(local, snapshot.CellSize) {
			continue
		}
		vector.DrawFilledRect(screen, float32(local.X), float32(local.Y), cell, cell, foodColor, false)
	}

	for i, segment := range snapshot.Snake.Segments {
		local := g.mapper.ToLocal(g.screenIndex, segment)
		if !g.mapper.Visible(local, snapshot.CellSize) {
			continue
		}
		fill := snakeColor
		if i == 0 {
			fill = headColor
		}
		vector.DrawFilledRect(screen, float32(local.X), float32(local.Y), cell, cell, fill, false)
	}

	status := "online"
	if !online {
		status = "reconnecting"
	}
	ebitenutil.DebugPrint(screen, fmt.Sprintf(
		"screen %d/%d  %s  score %d  tick %d  [%s]",
		g.screenIndex, g.world.ScreenCount, snapshot.State, snapshot.Score, snapshot.Tick, status,
	))
}

func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.world.ScreenWidth, g.world.ScreenHeight
}
