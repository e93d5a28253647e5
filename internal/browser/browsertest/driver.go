package browsertest

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"

	"github.com/nao1215/sitegraph/internal/browser"
)

// LoadMoreHandlePrefix prefixes the handles of generated load-more buttons.
const LoadMoreHandlePrefix = "load-more-"

// Page is a fake document.
type Page struct {
	// Status is the HTTP status. Zero means 200.
	Status int

	// MIME is document.contentType. Empty means text/html.
	MIME string

	// HTML is the rendered DOM returned for outerHTML.
	HTML string

	// BaseURI overrides document.baseURI. Empty means the page URL.
	BaseURI string

	// Width is the document width. Zero means the viewport width.
	Width int

	// Height is the document height before any expansion.
	Height int

	// ScrollHeights are the heights revealed by successive scrolls to the
	// bottom, as an infinite-scroll feed would.
	ScrollHeights []int

	// LoadMore is the number of load-more buttons shown one after another.
	// Each click replaces the button with a new one until all are used.
	LoadMore int

	// LoadMoreGrowth is added to the height on each load-more click.
	LoadMoreGrowth int

	// Elements are additional static elements returned by FindElements.
	Elements []browser.Element

	// ClickGrowth maps a static element handle to the height it adds
	// when clicked.
	ClickGrowth map[string]int

	// ClickErrors maps an element handle to the error its click returns.
	ClickErrors map[string]error

	// ClickNavigates maps an element handle to the URL its click loads, as
	// a followed link does.
	ClickNavigates map[string]string

	// Redirect makes Navigate load this URL instead and report it as the
	// final location.
	Redirect string

	// NavigateErr is returned by Navigate instead of loading the page.
	NavigateErr error
}

type state struct {
	url     string
	page    *Page
	height  int
	scrolls int
	loaded  int
}

// Driver is a fake browser.Driver. The zero value is not usable; use New.
type Driver struct {
	mu sync.Mutex

	pages   map[string]*Page
	current *state

	width  int
	height int

	// ScreenshotErr makes Screenshot fail.
	ScreenshotErr error
	// PrintErr makes PrintToPDF fail.
	PrintErr error
	// EvaluateErr makes every Evaluate fail.
	EvaluateErr error

	visits    []string
	clicks    []string
	prints    []browser.PrintOptions
	viewports [][2]int
	headers   map[string]string
}

var _ browser.Driver = (*Driver)(nil)

// New returns a Driver serving pages with the given viewport size.
func New(width, height int, pages map[string]*Page) *Driver {
	if pages == nil {
		pages = make(map[string]*Page)
	}
	return &Driver{
		pages:  pages,
		width:  width,
		height: height,
	}
}

// AddPage registers or replaces a page.
func (d *Driver) AddPage(url string, p *Page) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pages[url] = p
}

// Visits returns every URL passed to Navigate, in order. Redirect targets
// and links followed by Click are not visits.
func (d *Driver) Visits() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.visits...)
}

// Clicks returns the handles of every successful click, in order.
func (d *Driver) Clicks() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.clicks...)
}

// Prints returns the options of every PrintToPDF call.
func (d *Driver) Prints() []browser.PrintOptions {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]browser.PrintOptions(nil), d.prints...)
}

// ViewportHistory returns every size passed to SetViewport.
func (d *Driver) ViewportHistory() [][2]int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([][2]int(nil), d.viewports...)
}

// Headers returns the headers last set with SetExtraHeaders.
func (d *Driver) Headers() map[string]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.headers
}

// Navigate implements browser.Driver.
func (d *Driver) Navigate(ctx context.Context, url string) (browser.Response, error) {
	if err := ctx.Err(); err != nil {
		return browser.Response{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.visits = append(d.visits, url)
	p := d.lookup(url)
	if p.NavigateErr != nil {
		return browser.Response{}, p.NavigateErr
	}
	if p.Redirect != "" {
		url = p.Redirect
		p = d.lookup(url)
	}
	d.load(url, p)

	status := p.Status
	if status == 0 {
		status = 200
	}
	return browser.Response{Status: status, URL: url}, nil
}

// lookup returns the page registered for url, or a 404 page.
func (d *Driver) lookup(url string) *Page {
	if p, ok := d.pages[url]; ok {
		return p
	}
	return &Page{Status: 404, HTML: "<html><body>not found</body></html>"}
}

func (d *Driver) load(url string, p *Page) {
	d.current = &state{url: url, page: p, height: p.Height}
}

// Evaluate implements browser.Driver.
func (d *Driver) Evaluate(_ context.Context, script string, out any) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.EvaluateErr != nil {
		return d.EvaluateErr
	}
	if d.current == nil {
		return fmt.Errorf("evaluate before navigate: %w", browser.ErrUnknownScript)
	}
	cur := d.current

	switch script {
	case browser.ScriptScrollHeight:
		return assign(out, cur.height)
	case browser.ScriptScrollWidth:
		w := cur.page.Width
		if w == 0 {
			w = d.width
		}
		return assign(out, w)
	case browser.ScriptScrollToBottom:
		if cur.scrolls < len(cur.page.ScrollHeights) {
			cur.height = cur.page.ScrollHeights[cur.scrolls]
			cur.scrolls++
		}
		return nil
	case browser.ScriptContentType:
		mime := cur.page.MIME
		if mime == "" {
			mime = "text/html"
		}
		return assign(out, mime)
	case browser.ScriptOuterHTML:
		return assign(out, cur.page.HTML)
	case browser.ScriptBaseURI:
		base := cur.page.BaseURI
		if base == "" {
			base = cur.url
		}
		return assign(out, base)
	case browser.ScriptLocation:
		return assign(out, cur.url)
	case browser.ScriptResponseStatus:
		return assign(out, cur.page.Status)
	default:
		return fmt.Errorf("%w: %.40q", browser.ErrUnknownScript, script)
	}
}

// FindElements implements browser.Driver. The selector is ignored; the
// static elements and the current load-more button are returned.
func (d *Driver) FindElements(_ context.Context, _ string) ([]browser.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.current == nil {
		return nil, nil
	}
	cur := d.current
	elements := append([]browser.Element(nil), cur.page.Elements...)
	if cur.loaded < cur.page.LoadMore {
		elements = append(elements, browser.Element{
			Handle:  fmt.Sprintf("%s%d", LoadMoreHandlePrefix, cur.loaded+1),
			Tag:     "button",
			Text:    "Load more",
			Visible: true,
			Enabled: true,
		})
	}
	return elements, nil
}

// ScrollIntoView implements browser.Driver.
func (d *Driver) ScrollIntoView(_ context.Context, _ browser.Element) error {
	return nil
}

// Click implements browser.Driver.
func (d *Driver) Click(_ context.Context, el browser.Element) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.current == nil {
		return fmt.Errorf("click before navigate")
	}
	cur := d.current
	if err := cur.page.ClickErrors[el.Handle]; err != nil {
		return err
	}

	if target, ok := cur.page.ClickNavigates[el.Handle]; ok {
		d.clicks = append(d.clicks, el.Handle)
		d.load(target, d.lookup(target))
		return nil
	}
	if strings.HasPrefix(el.Handle, LoadMoreHandlePrefix) {
		cur.loaded++
		cur.height += cur.page.LoadMoreGrowth
	} else {
		cur.height += cur.page.ClickGrowth[el.Handle]
	}
	d.clicks = append(d.clicks, el.Handle)
	return nil
}

// Screenshot implements browser.Driver. It renders a PNG of the current
// viewport size with a vertical gradient.
func (d *Driver) Screenshot(_ context.Context) ([]byte, error) {
	d.mu.Lock()
	w, h, err := d.width, d.height, d.ScreenshotErr
	d.mu.Unlock()

	if err != nil {
		return nil, err
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		shade := uint8(y * 255 / max(h, 1))
		for x := range w {
			img.Set(x, y, color.RGBA{R: shade, G: shade, B: 255 - shade, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// PrintToPDF implements browser.Driver.
func (d *Driver) PrintToPDF(_ context.Context, opts browser.PrintOptions) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.PrintErr != nil {
		return nil, d.PrintErr
	}
	d.prints = append(d.prints, opts)
	url := ""
	if d.current != nil {
		url = d.current.url
	}
	return []byte("%PDF-1.4\n% " + url + "\n%%EOF\n"), nil
}

// SetViewport implements browser.Driver.
func (d *Driver) SetViewport(_ context.Context, width, height int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.width, d.height = width, height
	d.viewports = append(d.viewports, [2]int{width, height})
	return nil
}

// Viewport implements browser.Driver.
func (d *Driver) Viewport() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.width, d.height
}

// SetExtraHeaders implements browser.Driver.
func (d *Driver) SetExtraHeaders(_ context.Context, headers map[string]string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.headers = headers
	return nil
}

func assign(out any, v any) error {
	switch o := out.(type) {
	case nil:
		return nil
	case *int:
		n, ok := v.(int)
		if !ok {
			return fmt.Errorf("cannot assign %T to *int", v)
		}
		*o = n
	case *int64:
		n, ok := v.(int)
		if !ok {
			return fmt.Errorf("cannot assign %T to *int64", v)
		}
		*o = int64(n)
	case *float64:
		n, ok := v.(int)
		if !ok {
			return fmt.Errorf("cannot assign %T to *float64", v)
		}
		*o = float64(n)
	case *string:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("cannot assign %T to *string", v)
		}
		*o = s
	default:
		return fmt.Errorf("unsupported output type %T", out)
	}
	return nil
}
