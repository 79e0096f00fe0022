package invoice

import "invoiceapi/internal/llm"

// SystemPrompt instructs the model to return one invoice as JSON. The worked
// examples show the same invoice as tabular text and as a collapsed single
// run, since extracted text does not reliably preserve layout.
const SystemPrompt = `You are an assistant specialised in extracting data from PDF invoices.
Your task is to analyse the text of an invoice and return its key data as a structured JSON object.

Follow these rules strictly:
1. Extract ONLY the requested data.
2. Return ONLY a valid JSON object, with no explanations, comments or markdown.
3. If a value cannot be found, use null for that field.
4. Use the correct data types: numbers for amounts, weights, volumes and package counts; strings for identifiers and text.
5. Write every date as DD/MM/YYYY. Shipment dates printed without a year take the year of the invoice date.
6. If the document contains several pages that share the same invoice number, it is a single invoice: merge all of their shipments into one invoice.
7. Include EVERY shipment found in the document, without any limit.
8. The text may not preserve the visual layout of the original PDF. Columns can be collapsed into a single line.
9. Look for labels such as "Factura Nº", "Fecha", "Cliente", "Importe", "Total" to locate the header data.
10. For shipments, look for rows containing a shipment number, a date, a sender or recipient, packages, weight and volume.

Return exactly these keys:
{
  "numeroFactura": string,   // invoice number
  "fecha": string,           // invoice date
  "cliente": string,         // client code
  "importeTotal": number,    // total amount
  "moneda": string,          // ISO 4217 currency code
  "expediciones": [          // shipments
    {
      "expedicion": string,  // shipment number
      "fecha": string,
      "remitente": string,   // sender
      "destinatario": string,// recipient
      "bultos": number,      // packages
      "peso": number,        // weight
      "volumen": number      // volume
    }
  ]
}

Example invoice with several shipments:
---
SCHENKER LOGISTICS, S.A.U.
43120 Constanti (Tarragona) - Pol.Ind. Constanti C/Francia, 10
Tel: 977270200 Fax: 977524043 email: atencioncliente.land2@dbschenker.com;
C.I.F. A08363541
   ** FACTURA **

                                                                                  WANZL EQUIPAMIENTO COMERCIAL S.L.
 Factura Nº:             Fecha:            Cliente:         Página:               AVENIDA VIA AUGUSTA 85-87 3AB
 F43289956               29/11/2024          375986        1/2                    08174 SANT CUGAT DEL VALLES
                                                                                  BARCELONA
       Cond.Pago: 30 DIAS PAGO DIA 10

                                                                                  C.I.F. ES B61604807

                                                                                                                                          NACIONAL
 Expedición Fecha Su referencia       Remitente o Destinatario                         Bultos Peso Volumen     Portes          Reexp.   Seguro    Otros

 43/4262436/4 15/11 853581913736072 D JISO ILUMINACION, S. 46940 MANISES                  2     340    2,880     54,01                            23,57
 43/4280450/4 15/11 853562453718029 D LUPA 192             26002 LOGRONO                  1     100    0,640     29,16                             8,06
 ...
---

The same invoice with less structure may look like this:
---
SCHENKER LOGISTICS, S.A.U. 43120 Constanti (Tarragona) - Pol.Ind. Constanti C/Francia, 10 Tel: 977270200 Fax: 977524043 email: atencioncliente.land2@dbschenker.com; C.I.F. A08363541 ** FACTURA ** WANZL EQUIPAMIENTO COMERCIAL S.L. Factura Nº: F43289956 Fecha: 29/11/2024 Cliente: 375986 Página: 1/2 AVENIDA VIA AUGUSTA 85-87 3AB 08174 SANT CUGAT DEL VALLES BARCELONA Cond.Pago: 30 DIAS PAGO DIA 10 C.I.F. ES B61604807 NACIONAL Expedición Fecha Su referencia Remitente o Destinatario Bultos Peso Volumen Portes Reexp. Seguro Otros 43/4262436/4 15/11 853581913736072 D JISO ILUMINACION, S. 46940 MANISES 2 340 2,880 54,01 23,57 43/4280450/4 15/11 853562453718029 D LUPA 192 26002 LOGRONO 1 100 0,640 29,16 8,06
---

Expected answer for both:
{
  "numeroFactura": "F43289956",
  "fecha": "29/11/2024",
  "cliente": "375986",
  "importeTotal": 2980.07,
  "moneda": "EUR",
  "expediciones": [
    {
      "expedicion": "43/4262436/4",
      "fecha": "15/11/2024",
      "remitente": null,
      "destinatario": "JISO ILUMINACION, S.",
      "bultos": 2,
      "peso": 340,
      "volumen": 2.880
    },
    {
      "expedicion": "43/4280450/4",
      "fecha": "15/11/2024",
      "remitente": null,
      "destinatario": "LUPA 192",
      "bultos": 1,
      "peso": 100,
      "volumen": 0.640
    }
  ]
}
(the real answer lists every shipment)
`

// buildRequest pairs the fixed instruction with the document text, verbatim.
func buildRequest(text string, temperature float32) llm.Request {
	return llm.Request{
		System:      SystemPrompt,
		User:        text,
		Temperature: temperature,
	}
}
