// Package excel lee planillas de comprobantes (.xlsx) para la importación.
// Las columnas se reconocen por nombre exacto después de normalizar tildes y mayúsculas;
// no hay coincidencia aproximada.
package excel

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/jhoicas/comprobantes-api/internal/application/billing"
	"github.com/jhoicas/comprobantes-api/internal/domain"
	"github.com/jhoicas/comprobantes-api/internal/domain/entity"
	"github.com/jhoicas/comprobantes-api/internal/domain/finance"
)

// Columnas reconocidas.
const (
	ColNumber      = "numero"
	ColType        = "tipo"
	ColClient      = "cliente"
	ColDate        = "fecha"
	ColMonth       = "mes"
	ColDescription = "descripcion"
	ColQuantity    = "cantidad"
	ColPrice       = "precio"
	ColDiscount    = "descuento"
	ColRelated     = "factura_relacionada"
	ColDueDays     = "dias_vencimiento"
	ColPaymentDate = "fecha_pago"
)

var requiredColumns = []string{ColNumber, ColType, ColClient, ColDate, ColMonth, ColDescription, ColQuantity, ColPrice}

var dateLayouts = []string{"2006-01-02", "02/01/2006", "2/1/2006", "2006-01-02 15:04:05"}

// ParseError fila o celda que no se pudo interpretar.
type ParseError struct {
	Row     int
	Column  string
	Message string
}

func (e *ParseError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("fila %d: %s", e.Row, e.Message)
	}
	return fmt.Sprintf("fila %d, columna %s: %s", e.Row, e.Column, e.Message)
}

// Result un documento de la planilla: Document o Err, nunca ambos.
// Row es la primera fila (1-based, contando el encabezado) del documento.
type Result struct {
	Row      int
	Number   string
	Document *billing.ImportDocument
	Err      *ParseError
}

// Parser lee la primera hoja del libro.
type Parser struct {
	loc *time.Location
}

// NewParser construye el parser. Las fechas sin zona se interpretan en loc (nil = UTC).
func NewParser(loc *time.Location) *Parser {
	if loc == nil {
		loc = time.UTC
	}
	return &Parser{loc: loc}
}

// ParseFile abre path y delega en Parse.
func (p *Parser) ParseFile(path string) ([]Result, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("abrir planilla: %w", err)
	}
	defer fh.Close()
	return p.Parse(fh)
}

// Parse devuelve un Result por número de documento, en el orden en que aparecen.
// Un encabezado sin las columnas obligatorias es error de archivo.
func (p *Parser) Parse(r io.Reader) ([]Result, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("abrir planilla: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("la planilla no tiene hojas")
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("leer hoja %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("la hoja %s está vacía", sheets[0])
	}

	cols := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		name := normalize(h)
		if name == "" {
			continue
		}
		if _, dup := cols[name]; dup {
			return nil, fmt.Errorf("columna repetida: %s", name)
		}
		cols[name] = i
	}
	var missing []string
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("faltan columnas obligatorias: %s", strings.Join(missing, ", "))
	}

	var order []string
	groups := make(map[string]*group)
	for i, row := range rows[1:] {
		rowNum := i + 2
		c := cells{row: row, cols: cols}
		if c.blank() {
			continue
		}
		number := c.get(ColNumber)
		if number == "" {
			// Sin número no se puede agrupar: resultado propio.
			key := fmt.Sprintf("#fila-%d", rowNum)
			order = append(order, key)
			groups[key] = &group{row: rowNum, err: &ParseError{Row: rowNum, Column: ColNumber, Message: "requerido"}}
			continue
		}
		g, ok := groups[number]
		if !ok {
			g = &group{row: rowNum, number: number}
			groups[number] = g
			order = append(order, number)
		}
		if g.err != nil {
			continue
		}
		g.err = p.addRow(g, rowNum, c)
	}

	out := make([]Result, 0, len(order))
	for _, key := range order {
		g := groups[key]
		res := Result{Row: g.row, Number: g.number}
		if g.err != nil {
			res.Err = g.err
		} else {
			res.Document = g.doc
		}
		out = append(out, res)
	}
	return out, nil
}

type group struct {
	row    int
	number string
	doc    *billing.ImportDocument
	err    *ParseError
}

// addRow agrega la línea al documento. La primera fila define la cabecera; las
// siguientes deben repetir los mismos valores o dejarlos vacíos.
func (p *Parser) addRow(g *group, rowNum int, c cells) *ParseError {
	fail := func(col, msg string) *ParseError {
		return &ParseError{Row: rowNum, Column: col, Message: msg}
	}

	if g.doc == nil {
		doc := &billing.ImportDocument{Row: rowNum, Number: g.number}

		t, err := parseType(c.get(ColType))
		if err != nil {
			return fail(ColType, err.Error())
		}
		doc.Type = t
		doc.ClientName = c.get(ColClient)

		issued, err := p.parseDate(c.get(ColDate))
		if err != nil {
			return fail(ColDate, err.Error())
		}
		doc.IssuedAt = issued

		if m := c.get(ColMonth); m != "" {
			if !finance.ValidMonth(m) {
				return fail(ColMonth, "formato esperado YYYY-MM")
			}
			doc.Month = m
		}
		doc.RelatedNumber = c.get(ColRelated)

		if v := c.get(ColDueDays); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fail(ColDueDays, "debe ser un entero")
			}
			doc.DueDays = n
		}
		if v := c.get(ColPaymentDate); v != "" {
			paid, err := p.parseDate(v)
			if err != nil {
				return fail(ColPaymentDate, err.Error())
			}
			doc.PaymentDate = &paid
		}
		g.doc = doc
	} else {
		if v := c.get(ColType); v != "" {
			if t, err := parseType(v); err != nil || t != g.doc.Type {
				return fail(ColType, "no coincide con la primera fila del documento")
			}
		}
		if v := c.get(ColClient); v != "" && !strings.EqualFold(v, g.doc.ClientName) {
			return fail(ColClient, "no coincide con la primera fila del documento")
		}
	}

	item, perr := p.parseItem(rowNum, c, g.doc.Month)
	if perr != nil {
		return perr
	}
	g.doc.Items = append(g.doc.Items, item)
	return nil
}

func (p *Parser) parseItem(rowNum int, c cells, month string) (entity.LineItem, *ParseError) {
	fail := func(col, msg string) *ParseError {
		return &ParseError{Row: rowNum, Column: col, Message: msg}
	}
	item := entity.LineItem{Description: c.get(ColDescription), Month: month}
	if item.Description == "" {
		return item, fail(ColDescription, "requerida")
	}
	qty, err := parseQuantity(c.get(ColQuantity))
	if err != nil {
		return item, fail(ColQuantity, err.Error())
	}
	item.Quantity = qty

	price, err := parseAmount(c.get(ColPrice))
	if err != nil {
		return item, fail(ColPrice, err.Error())
	}
	item.UnitPrice = price

	item.UnitDiscount = decimal.Zero
	if v := c.get(ColDiscount); v != "" {
		disc, err := parseAmount(v)
		if err != nil {
			return item, fail(ColDiscount, err.Error())
		}
		item.UnitDiscount = disc
	}
	return item, nil
}

// parseType acepta el nombre del tipo, el prefijo o el nombre en castellano.
func parseType(v string) (entity.DocumentType, error) {
	switch normalize(v) {
	case "invoice", "fc", "factura":
		return entity.DocumentTypeInvoice, nil
	case "receipt", "rc", "recibo":
		return entity.DocumentTypeReceipt, nil
	case "creditnote", "credit_note", "nc", "nota_de_credito", "nota_credito":
		return entity.DocumentTypeCreditNote, nil
	default:
		return "", fmt.Errorf("tipo desconocido %q", v)
	}
}

// parseDate acepta el número de serie de Excel (celdas con formato fecha) o texto.
func (p *Parser) parseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, fmt.Errorf("requerida")
	}
	if serial, err := strconv.ParseFloat(v, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, fmt.Errorf("fecha inválida %q", v)
		}
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, p.loc), nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, v, p.loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("fecha inválida %q", v)
}

func parseQuantity(v string) (int, error) {
	if v == "" {
		return 0, fmt.Errorf("requerida")
	}
	d, err := decimal.NewFromString(v)
	if err != nil || !d.Equal(d.Truncate(0)) {
		return 0, fmt.Errorf("debe ser un entero")
	}
	if d.LessThan(decimal.NewFromInt(1)) {
		return 0, fmt.Errorf("debe ser al menos 1")
	}
	return int(d.IntPart()), nil
}

// parseAmount acepta "1234.5" y "1234,5".
func parseAmount(v string) (decimal.Decimal, error) {
	if v == "" {
		return decimal.Zero, fmt.Errorf("requerido")
	}
	if !strings.Contains(v, ".") {
		v = strings.Replace(v, ",", ".", 1)
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("monto inválido %q", v)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("no puede ser negativo")
	}
	return d, nil
}

// cells acceso por nombre de columna a una fila.
type cells struct {
	row  []string
	cols map[string]int
}

func (c cells) get(col string) string {
	i, ok := c.cols[col]
	if !ok || i >= len(c.row) {
		return ""
	}
	return strings.TrimSpace(c.row[i])
}

func (c cells) blank() bool {
	for _, v := range c.row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// ParseImport lee la planilla y la deja lista para DocumentImporter.
func (p *Parser) ParseImport(r io.Reader) ([]billing.ImportDocument, []billing.ImportResult, error) {
	results, err := p.Parse(r)
	if err != nil {
		return nil, nil, err
	}
	docs, failed := Split(results)
	return docs, failed, nil
}

// Split separa los documentos listos para importar de las filas que no se pudieron leer;
// éstas salen como resultados fallidos con el mismo formato que devuelve la importación.
func Split(results []Result) ([]billing.ImportDocument, []billing.ImportResult) {
	var docs []billing.ImportDocument
	var failed []billing.ImportResult
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, billing.ImportResult{
				Row:     r.Err.Row,
				Number:  r.Number,
				Status:  billing.ImportStatusFailed,
				Kind:    domain.CodeValidation,
				Message: r.Err.Error(),
			})
			continue
		}
		docs = append(docs, *r.Document)
	}
	return docs, failed
}
