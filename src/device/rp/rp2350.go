// Package rp describes the RP2350 registers used during bring-up: physical
// base addresses, register offsets and bit fields, and the numbering of the
// blocks under control of the reset controller.
package rp

// Peripheral base addresses.
const (
	CLOCKS   = 0x40010000
	RESETS   = 0x40020000
	IO_BANK0 = 0x40028000
	XOSC     = 0x40048000
	PLL_SYS  = 0x40050000
	PLL_USB  = 0x40058000
	BOOTRAM  = 0x400e0000
	SIO      = 0xd0000000
)

// RESETS registers.
const (
	RESETS_RESET      = RESETS + 0x0
	RESETS_WDSEL      = RESETS + 0x4
	RESETS_RESET_DONE = RESETS + 0x8
)

// Block is a hardware block controlled by the reset controller. Its value is
// the bit position in RESET and RESET_DONE.
type Block uint8

const (
	BlockADC Block = iota
	BlockBUSCTRL
	BlockDMA
	BlockHSTX
	BlockI2C0
	BlockI2C1
	BlockIO_BANK0
	BlockIO_QSPI
	BlockJTAG
	BlockPADS_BANK0
	BlockPADS_QSPI
	BlockPIO0
	BlockPIO1
	BlockPIO2
	BlockPLL_SYS
	BlockPLL_USB
	BlockPWM
	BlockSHA256
	BlockSPI0
	BlockSPI1
	BlockSYSCFG
	BlockSYSINFO
	BlockTBMAN
	BlockTIMER0
	BlockTIMER1
	BlockTRNG
	BlockUART0
	BlockUART1
	BlockUSBCTRL
	NumBlocks
)

// ResetBits covers every block in RESET and RESET_DONE.
const ResetBits = 1<<NumBlocks - 1

var blockNames = [NumBlocks]string{
	"ADC", "BUSCTRL", "DMA", "HSTX", "I2C0", "I2C1", "IO_BANK0", "IO_QSPI",
	"JTAG", "PADS_BANK0", "PADS_QSPI", "PIO0", "PIO1", "PIO2", "PLL_SYS",
	"PLL_USB", "PWM", "SHA256", "SPI0", "SPI1", "SYSCFG", "SYSINFO", "TBMAN",
	"TIMER0", "TIMER1", "TRNG", "UART0", "UART1", "USBCTRL",
}

// Mask returns the RESET/RESET_DONE bit of the block.
func (b Block) Mask() uint32 {
	return 1 << b
}

func (b Block) String() string {
	if b < NumBlocks {
		return blockNames[b]
	}
	return "Block(?)"
}

// ParseBlock returns the block with the given name, as printed by String.
func ParseBlock(name string) (Block, bool) {
	for i, n := range blockNames {
		if n == name {
			return Block(i), true
		}
	}
	return 0, false
}

// CLOCKS registers. Every clock slice has CTRL, DIV and SELECTED registers,
// laid out consecutively from CLOCKS_CLK_GPOUT0_CTRL with this stride.
const (
	CLOCKS_CLK_GPOUT0_CTRL  = CLOCKS + 0x00
	CLOCKS_CLK_REF_CTRL     = CLOCKS + 0x30
	CLOCKS_CLK_REF_DIV      = CLOCKS + 0x34
	CLOCKS_CLK_REF_SELECTED = CLOCKS + 0x38
	CLOCKS_CLK_SYS_CTRL     = CLOCKS + 0x3c
	CLOCKS_CLK_SYS_DIV      = CLOCKS + 0x40
	CLOCKS_CLK_SYS_SELECTED = CLOCKS + 0x44
	CLOCKS_CLK_PERI_CTRL    = CLOCKS + 0x48
	CLOCKS_CLK_PERI_DIV     = CLOCKS + 0x4c
	CLOCKS_CLK_USB_CTRL     = CLOCKS + 0x60
	CLOCKS_CLK_USB_DIV      = CLOCKS + 0x64
	CLOCKS_CLK_ADC_CTRL     = CLOCKS + 0x6c
	CLOCKS_CLK_ADC_DIV      = CLOCKS + 0x70

	CLOCKS_CLK_SYS_RESUS_CTRL = CLOCKS + 0x84
	CLOCKS_FC0_REF_KHZ        = CLOCKS + 0x8c
	CLOCKS_FC0_MIN_KHZ        = CLOCKS + 0x90
	CLOCKS_FC0_MAX_KHZ        = CLOCKS + 0x94
	CLOCKS_FC0_DELAY          = CLOCKS + 0x98
	CLOCKS_FC0_INTERVAL       = CLOCKS + 0x9c
	CLOCKS_FC0_SRC            = CLOCKS + 0xa0
	CLOCKS_FC0_STATUS         = CLOCKS + 0xa4
	CLOCKS_FC0_RESULT         = CLOCKS + 0xa8

	ClockSliceStride = 0x0c
	NumClockSlices   = 10
)

// Clock CTRL, DIV and frequency counter fields.
const (
	CLOCKS_CTRL_SRC_Msk       = 0x3
	CLOCKS_CTRL_AUXSRC_Pos    = 5
	CLOCKS_CTRL_AUXSRC_Msk    = 0xf << CLOCKS_CTRL_AUXSRC_Pos
	CLOCKS_CTRL_ENABLE        = 1 << 11
	CLOCKS_CTRL_ENABLED       = 1 << 28
	CLOCKS_DIV_INT_Pos        = 16
	CLOCKS_FC0_STATUS_DONE    = 1 << 4
	CLOCKS_FC0_MAX_KHZ_Msk    = 0x1ffffff
	CLOCKS_FC0_RESULT_FRAC    = 0x1f
	CLOCKS_FC0_RESULT_KHZ_Pos = 5
)

// Glitchless source selectors.
const (
	CLOCKS_CLK_REF_CTRL_SRC_ROSC_CLKSRC_PH     = 0x0
	CLOCKS_CLK_REF_CTRL_SRC_CLKSRC_CLK_REF_AUX = 0x1
	CLOCKS_CLK_REF_CTRL_SRC_XOSC_CLKSRC        = 0x2
	CLOCKS_CLK_REF_CTRL_SRC_LPOSC_CLKSRC       = 0x3

	CLOCKS_CLK_SYS_CTRL_SRC_CLK_REF            = 0x0
	CLOCKS_CLK_SYS_CTRL_SRC_CLKSRC_CLK_SYS_AUX = 0x1
)

// Auxiliary source selectors.
const (
	CLOCKS_CLK_SYS_CTRL_AUXSRC_CLKSRC_PLL_SYS = 0x0
	CLOCKS_CLK_SYS_CTRL_AUXSRC_CLKSRC_PLL_USB = 0x1
	CLOCKS_CLK_SYS_CTRL_AUXSRC_ROSC_CLKSRC    = 0x2
	CLOCKS_CLK_SYS_CTRL_AUXSRC_XOSC_CLKSRC    = 0x3

	CLOCKS_CLK_REF_CTRL_AUXSRC_CLKSRC_PLL_USB = 0x0

	CLOCKS_CLK_PERI_CTRL_AUXSRC_CLK_SYS        = 0x0
	CLOCKS_CLK_PERI_CTRL_AUXSRC_CLKSRC_PLL_SYS = 0x1
	CLOCKS_CLK_PERI_CTRL_AUXSRC_CLKSRC_PLL_USB = 0x2
	CLOCKS_CLK_PERI_CTRL_AUXSRC_ROSC_CLKSRC_PH = 0x3
	CLOCKS_CLK_PERI_CTRL_AUXSRC_XOSC_CLKSRC    = 0x4

	CLOCKS_CLK_USB_CTRL_AUXSRC_CLKSRC_PLL_USB = 0x0
	CLOCKS_CLK_USB_CTRL_AUXSRC_CLKSRC_PLL_SYS = 0x1
	CLOCKS_CLK_USB_CTRL_AUXSRC_ROSC_CLKSRC_PH = 0x2
	CLOCKS_CLK_USB_CTRL_AUXSRC_XOSC_CLKSRC    = 0x3

	CLOCKS_CLK_ADC_CTRL_AUXSRC_CLKSRC_PLL_USB = 0x0
	CLOCKS_CLK_ADC_CTRL_AUXSRC_CLKSRC_PLL_SYS = 0x1
	CLOCKS_CLK_ADC_CTRL_AUXSRC_ROSC_CLKSRC_PH = 0x2
	CLOCKS_CLK_ADC_CTRL_AUXSRC_XOSC_CLKSRC    = 0x3
)

// Frequency counter sources (FC0_SRC).
const (
	CLOCKS_FC0_SRC_NULL                   = 0x00
	CLOCKS_FC0_SRC_PLL_SYS_CLKSRC_PRIMARY = 0x01
	CLOCKS_FC0_SRC_PLL_USB_CLKSRC_PRIMARY = 0x02
	CLOCKS_FC0_SRC_ROSC_CLKSRC            = 0x03
	CLOCKS_FC0_SRC_ROSC_CLKSRC_PH         = 0x04
	CLOCKS_FC0_SRC_XOSC_CLKSRC            = 0x05
	CLOCKS_FC0_SRC_CLK_REF                = 0x08
	CLOCKS_FC0_SRC_CLK_SYS                = 0x09
	CLOCKS_FC0_SRC_CLK_PERI               = 0x0a
	CLOCKS_FC0_SRC_CLK_USB                = 0x0b
	CLOCKS_FC0_SRC_CLK_ADC                = 0x0c
	CLOCKS_FC0_SRC_CLK_HSTX               = 0x0d
)

// XOSC registers and fields.
const (
	XOSC_CTRL    = XOSC + 0x00
	XOSC_STATUS  = XOSC + 0x04
	XOSC_DORMANT = XOSC + 0x08
	XOSC_STARTUP = XOSC + 0x0c
	XOSC_COUNT   = XOSC + 0x10

	XOSC_CTRL_FREQ_RANGE_Msk       = 0xfff
	XOSC_CTRL_FREQ_RANGE_1_15MHZ   = 0xaa0
	XOSC_CTRL_FREQ_RANGE_10_30MHZ  = 0xaa1
	XOSC_CTRL_FREQ_RANGE_25_60MHZ  = 0xaa2
	XOSC_CTRL_FREQ_RANGE_40_100MHZ = 0xaa3
	XOSC_CTRL_ENABLE_Pos           = 12
	XOSC_CTRL_ENABLE_Msk           = 0xfff << XOSC_CTRL_ENABLE_Pos
	XOSC_CTRL_ENABLE_ENABLE        = 0xd1e << XOSC_CTRL_ENABLE_Pos
	XOSC_CTRL_ENABLE_DISABLE       = 0xfab << XOSC_CTRL_ENABLE_Pos
	XOSC_STATUS_STABLE             = 1 << 31
	XOSC_STARTUP_DELAY_Msk         = 0x3fff
)

// PLL register offsets and fields. Both instances share this layout.
const (
	PLL_CS        = 0x0
	PLL_PWR       = 0x4
	PLL_FBDIV_INT = 0x8
	PLL_PRIM      = 0xc

	PLL_CS_REFDIV_Msk     = 0x3f
	PLL_CS_BYPASS         = 1 << 8
	PLL_CS_LOCK_N         = 1 << 30
	PLL_CS_LOCK           = 1 << 31
	PLL_PWR_PD            = 1 << 0
	PLL_PWR_DSMPD         = 1 << 2
	PLL_PWR_POSTDIVPD     = 1 << 3
	PLL_PWR_VCOPD         = 1 << 5
	PLL_FBDIV_INT_Msk     = 0xfff
	PLL_PRIM_POSTDIV1_Pos = 16
	PLL_PRIM_POSTDIV2_Pos = 12
	PLL_PRIM_Msk          = 0x7<<PLL_PRIM_POSTDIV1_Pos | 0x7<<PLL_PRIM_POSTDIV2_Pos
)

// SIO registers used for the inter-core FIFO and the RISC-V machine timer.
// SIO is core-local and has no atomic aliases.
const (
	SIO_FIFO_ST    = SIO + 0x050
	SIO_FIFO_WR    = SIO + 0x054
	SIO_FIFO_RD    = SIO + 0x058
	SIO_MTIME_CTRL = SIO + 0x1a4
	SIO_MTIME      = SIO + 0x1b0
	SIO_MTIMEH     = SIO + 0x1b4
	SIO_MTIMECMP   = SIO + 0x1b8
	SIO_MTIMECMPH  = SIO + 0x1bc

	SIO_FIFO_ST_VLD = 1 << 0
	SIO_FIFO_ST_RDY = 1 << 1
	SIO_FIFO_ST_WOF = 1 << 2
	SIO_FIFO_ST_ROE = 1 << 3

	SIO_MTIME_CTRL_EN        = 1 << 0
	SIO_MTIME_CTRL_FULLSPEED = 1 << 1

	// Entries per FIFO direction.
	SIO_FIFO_DEPTH = 4
)
