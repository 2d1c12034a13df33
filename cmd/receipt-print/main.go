package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"

	"receipt-print/internal/config"
	"receipt-print/internal/logger"
	"receipt-print/internal/printer"
	"receipt-print/internal/transport"
)

const (
	AppVersion = "1.0.0"
	AppName    = "Receipt Print"
)

var transportNames = map[string]string{
	config.TransportBLE:    "Bluetooth LE",
	config.TransportSerial: "Bluetooth Serial (SPP)",
}

type App struct {
	fyneApp fyne.App
	window  fyne.Window
	cfg     *config.Config
	logger  *slog.Logger

	// one transport per kind; the BLE adapter must only be enabled once
	transports map[string]printer.Transport
	client     *printer.Client
	tx         *printer.Transaction

	// print jobs must not interleave on the wire
	jobMu sync.Mutex
	busy  atomic.Bool

	// Widgets that need updating
	statusLabel     *widget.Label
	txLabel         *widget.Label
	connectBtn      *widget.Button
	printSaleBtn    *widget.Button
	printPurchBtn   *widget.Button
	testBtn         *widget.Button
	transportSelect *widget.Select
	btDeviceSelect  *widget.Select
	portSelect      *widget.Select
	nameEntry       *widget.Entry
	addressEntry    *widget.Entry
	phoneEntry      *widget.Entry

	// Bluetooth devices cache
	btDevices []transport.BluetoothDevice
}

func main() {
	configPath := flag.String("config", "receipt-print.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	a := app.New()
	w := a.NewWindow(fmt.Sprintf("%s v%s", AppName, AppVersion))
	w.Resize(fyne.NewSize(520, 620))

	receiptApp := &App{
		fyneApp:    a,
		window:     w,
		cfg:        cfg,
		logger:     log,
		transports: make(map[string]printer.Transport),
	}

	w.SetMainMenu(receiptApp.buildMenu())
	w.SetContent(receiptApp.buildUI())
	w.SetOnClosed(func() {
		receiptApp.cleanup()
	})

	receiptApp.rebuildClient()
	w.ShowAndRun()
}

func (a *App) buildMenu() *fyne.MainMenu {
	aboutItem := fyne.NewMenuItem("About", func() {
		a.showAboutDialog()
	})
	return fyne.NewMainMenu(fyne.NewMenu("Help", aboutItem))
}

func (a *App) showAboutDialog() {
	content := container.NewVBox(
		widget.NewLabelWithStyle(AppName, fyne.TextAlignCenter, fyne.TextStyle{Bold: true}),
		widget.NewLabel(fmt.Sprintf("Version %s", AppVersion)),
		widget.NewSeparator(),
		widget.NewLabel("Prints sales and purchase receipts on 58mm ESC/POS\nthermal printers over Bluetooth."),
		widget.NewLabel(""),
		widget.NewLabel("Built with Fyne and Go"),
	)
	dialog.ShowCustom("About", "Close", content, a.window)
}

func (a *App) cleanup() {
	if a.client != nil {
		a.client.Disconnect()
	}
}

func (a *App) buildUI() fyne.CanvasObject {
	a.statusLabel = widget.NewLabel("Not connected")

	// === CONNECTION SECTION ===
	kinds := []string{transportNames[config.TransportBLE], transportNames[config.TransportSerial]}
	a.transportSelect = widget.NewSelect(kinds, func(s string) {
		for kind, name := range transportNames {
			if name == s && kind != a.cfg.Transport {
				a.cfg.Transport = kind
				a.rebuildClient()
			}
		}
	})
	a.transportSelect.SetSelected(transportNames[a.cfg.Transport])

	a.connectBtn = widget.NewButton("Connect", func() {
		a.toggleConnection()
	})
	a.connectBtn.Importance = widget.HighImportance

	connRow := container.NewBorder(nil, nil, nil, a.connectBtn, a.transportSelect)

	// === SERIAL OPTIONS (advanced) ===
	a.btDeviceSelect = widget.NewSelect([]string{}, func(string) {
		if d := a.getSelectedBluetoothDevice(); d != nil {
			a.cfg.Serial.Device = d.MAC
			a.resetSerialTransport()
		}
	})
	refreshBTBtn := widget.NewButton("↻", func() {
		go a.refreshBluetoothDevices()
	})
	btRow := container.NewBorder(nil, nil, nil, refreshBTBtn, a.btDeviceSelect)

	a.portSelect = widget.NewSelect([]string{}, func(s string) {
		a.cfg.Serial.Port = s
		a.resetSerialTransport()
	})
	refreshPortsBtn := widget.NewButton("↻", func() {
		a.refreshPorts()
	})
	clearPortBtn := widget.NewButton("Clear", func() {
		a.portSelect.ClearSelected()
		a.cfg.Serial.Port = ""
		a.resetSerialTransport()
	})
	portRow := container.NewBorder(nil, nil, nil, container.NewHBox(refreshPortsBtn, clearPortBtn), a.portSelect)

	advancedContent := container.NewVBox(
		widget.NewLabel("Paired printer:"),
		btRow,
		widget.NewLabel("Manual port (if already bound):"),
		portRow,
	)

	// === BUSINESS SECTION ===
	a.nameEntry = widget.NewEntry()
	a.nameEntry.SetText(a.cfg.Business.Name)
	a.addressEntry = widget.NewEntry()
	a.addressEntry.SetText(a.cfg.Business.Address)
	a.phoneEntry = widget.NewEntry()
	a.phoneEntry.SetText(a.cfg.Business.Phone)

	businessForm := widget.NewForm(
		widget.NewFormItem("Name", a.nameEntry),
		widget.NewFormItem("Address", a.addressEntry),
		widget.NewFormItem("Phone", a.phoneEntry),
	)

	// === TRANSACTION SECTION ===
	a.txLabel = widget.NewLabel("No transaction loaded")
	loadBtn := widget.NewButton("Load Transaction…", func() {
		a.loadTransaction()
	})

	a.printSaleBtn = widget.NewButton("Print Sale Receipt", func() {
		a.printSale()
	})
	a.printPurchBtn = widget.NewButton("Print Purchase Receipt", func() {
		a.printPurchase()
	})
	a.testBtn = widget.NewButton("Test Print", func() {
		a.printTestPage()
	})

	panel := container.NewVBox(
		widget.NewLabel("Printer"),
		connRow,
		widget.NewAccordion(
			widget.NewAccordionItem("Serial options", advancedContent),
		),
		widget.NewSeparator(),
		widget.NewLabel("Business"),
		businessForm,
		widget.NewSeparator(),
		widget.NewLabel("Transaction"),
		container.NewBorder(nil, nil, nil, loadBtn, a.txLabel),
		widget.NewSeparator(),
		a.printSaleBtn,
		a.printPurchBtn,
		a.testBtn,
	)

	a.refreshPorts()
	go a.refreshBluetoothDevices()
	a.refreshControls()

	return container.NewBorder(
		nil,
		container.NewHBox(a.statusLabel),
		nil, nil,
		container.NewPadded(panel),
	)
}

// rebuildClient drops the current client and builds one for the selected transport
func (a *App) rebuildClient() {
	if a.client != nil {
		a.client.Disconnect()
	}

	t, ok := a.transports[a.cfg.Transport]
	if !ok {
		var err error
		t, err = newTransport(a.cfg, a.logger)
		if err != nil {
			dialog.ShowError(err, a.window)
			return
		}
		a.transports[a.cfg.Transport] = t
	}

	opts, err := clientOptions(a.cfg, a.logger)
	if err != nil {
		a.logger.Error("printer options", "err", err)
		dialog.ShowError(err, a.window)
		opts = fallbackOptions(a.cfg, a.logger)
	}
	a.client = printer.New(t, opts...)

	if !a.client.IsBluetoothSupported() {
		a.statusLabel.SetText(fmt.Sprintf("%s is not available on this computer", transportNames[a.cfg.Transport]))
	} else {
		a.statusLabel.SetText("Not connected")
	}
	a.refreshControls()
}

// resetSerialTransport forces the serial transport to pick up new settings
func (a *App) resetSerialTransport() {
	delete(a.transports, config.TransportSerial)
	if a.client == nil {
		return
	}
	if a.cfg.Transport == config.TransportSerial && !a.client.IsConnected() {
		a.rebuildClient()
	}
}

func (a *App) refreshBluetoothDevices() {
	devices, err := transport.ListPairedBluetoothDevices()
	if err != nil {
		a.logger.Debug("listing paired devices", "err", err)
		return
	}

	a.btDevices = devices
	options := make([]string, len(devices))
	for i, d := range devices {
		options[i] = fmt.Sprintf("%s (%s)", d.Name, d.MAC)
	}
	a.btDeviceSelect.Options = options
	a.btDeviceSelect.Refresh()

	for i, d := range devices {
		if a.cfg.Serial.Device != "" && d.MAC == a.cfg.Serial.Device {
			a.btDeviceSelect.SetSelectedIndex(i)
			break
		}
	}
}

func (a *App) refreshPorts() {
	ports, err := transport.ListSerialPorts()
	if err != nil {
		a.logger.Debug("listing serial ports", "err", err)
	}
	a.portSelect.Options = ports
	a.portSelect.Refresh()
	if a.cfg.Serial.Port != "" {
		a.portSelect.SetSelected(a.cfg.Serial.Port)
	}
}

func (a *App) getSelectedBluetoothDevice() *transport.BluetoothDevice {
	selectedIdx := a.btDeviceSelect.SelectedIndex()
	if selectedIdx < 0 || selectedIdx >= len(a.btDevices) {
		return nil
	}
	return &a.btDevices[selectedIdx]
}

func (a *App) toggleConnection() {
	if a.client == nil {
		return
	}
	if a.client.IsConnected() {
		a.client.Disconnect()
		a.statusLabel.SetText("Disconnected")
		a.refreshControls()
		return
	}

	if !a.client.IsBluetoothSupported() {
		dialog.ShowError(fmt.Errorf("%s is not available on this computer", transportNames[a.cfg.Transport]), a.window)
		return
	}

	a.connectBtn.Disable()
	a.transportSelect.Disable()
	a.statusLabel.SetText("Looking for a printer...")

	go func() {
		defer a.transportSelect.Enable()

		if !a.client.Connect(context.Background()) {
			err := a.client.LastError()
			a.statusLabel.SetText(fmt.Sprintf("Connection failed: %v", err))
			a.refreshControls()
			dialog.ShowError(err, a.window)
			return
		}

		name, _ := a.client.DeviceName()
		a.statusLabel.SetText(fmt.Sprintf("Connected to %s", name))
		a.refreshControls()
	}()
}

// refreshControls syncs button state with the connection and job state
func (a *App) refreshControls() {
	if a.connectBtn == nil {
		return
	}

	connected := a.client != nil && a.client.IsConnected()
	if connected {
		a.connectBtn.SetText("Disconnect")
	} else {
		a.connectBtn.SetText("Connect")
	}
	a.connectBtn.Enable()

	canPrint := connected && !a.busy.Load()
	setEnabled(a.testBtn, canPrint)
	setEnabled(a.printSaleBtn, canPrint && a.tx != nil)
	setEnabled(a.printPurchBtn, canPrint && a.tx != nil)
}

func setEnabled(b *widget.Button, on bool) {
	if on {
		b.Enable()
	} else {
		b.Disable()
	}
}

func (a *App) loadTransaction() {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil {
			dialog.ShowError(err, a.window)
			return
		}
		if reader == nil {
			return
		}
		defer reader.Close()

		tx, err := loadTransaction(reader)
		if err != nil {
			dialog.ShowError(err, a.window)
			return
		}

		a.tx = &tx
		a.txLabel.SetText(fmt.Sprintf("%s: %s", reader.URI().Name(), summarize(tx)))
		a.refreshControls()
	}, a.window)

	fd.SetFilter(storage.NewExtensionFileFilter([]string{".json"}))
	fd.Show()
}

func (a *App) business() printer.BusinessInfo {
	return printer.BusinessInfo{
		Name:    a.nameEntry.Text,
		Address: a.addressEntry.Text,
		Phone:   a.phoneEntry.Text,
	}
}

func (a *App) printSale() {
	tx, biz := *a.tx, a.business()
	a.runJob("Printing receipt...", func(ctx context.Context) bool {
		return a.client.PrintReceipt(ctx, tx, biz)
	})
}

func (a *App) printPurchase() {
	tx, biz := *a.tx, a.business()
	a.runJob("Printing purchase receipt...", func(ctx context.Context) bool {
		return a.client.PrintPurchaseReceipt(ctx, tx, biz)
	})
}

func (a *App) printTestPage() {
	name, _ := a.client.DeviceName()
	page := testPage(name, a.cfg.Printer.Encoding)
	a.runJob("Printing test page...", func(ctx context.Context) bool {
		return a.client.SendRawData(ctx, page)
	})
}

// runJob runs one print job at a time off the UI goroutine
func (a *App) runJob(status string, job func(ctx context.Context) bool) {
	if !a.jobMu.TryLock() {
		return
	}
	a.busy.Store(true)
	a.refreshControls()
	a.statusLabel.SetText(status)

	go func() {
		defer func() {
			a.busy.Store(false)
			a.jobMu.Unlock()
			a.refreshControls()
		}()

		if job(context.Background()) {
			a.statusLabel.SetText("Print complete!")
			return
		}
		a.statusLabel.SetText(fmt.Sprintf("Print error: %v", a.client.LastError()))
	}()
}
