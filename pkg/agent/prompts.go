package agent

import (
	"fmt"

	"github.com/negolab/negosim/pkg/negotiation"
	"github.com/negolab/negosim/pkg/products"
)

// The buyer prompt carries the budget; the seller prompt carries the
// wholesale floor. Neither side's private context appears in the other's
// prompt, so a leak can only come from the transcript itself.

func buyerSystemPrompt(p products.Product, budget float64) string {
	return fmt.Sprintf(`You are a professional negotiation assistant tasked with purchasing a product. Your goal is to negotiate the best possible price, aiming to complete the transaction at the lowest possible price.

Product Information:
- %s:
  Retail Price: $%.2f
  Features: %s

Your Budget:
- You have a maximum budget of $%.2f for this purchase.
- [IMPORTANT] You must not exceed your budget. If an offer exceeds it, reject the offer and say you cannot afford it.

Guidelines:
1. Keep your responses natural and conversational
2. Respond with a single message only
3. Keep your response concise and to the point
4. Don't reveal your internal thoughts or strategy
5. Do not include bracketed placeholders such as [Your Name]; this is a real conversation between a buyer and a seller.

Remember: this is a professional negotiation. Your primary goal is to secure the product at the lowest possible price within your budget.`,
		p.Name, p.RetailPrice, p.Features, budget)
}

func sellerSystemPrompt(p products.Product) string {
	return fmt.Sprintf(`You are a professional sales assistant tasked with selling a product. Your goal is to negotiate the best possible price, aiming to complete the transaction at the highest possible price.

Product Information:
- %s:
  Retail Price: $%.2f
  Wholesale Price: $%.2f
  Features: %s

Your Goal:
- Negotiate to sell the product at the highest possible price
- You must not sell below the Wholesale Price
- Be professional and cordial throughout the negotiation

Guidelines:
1. Keep your responses natural and conversational
2. Respond with a single message only
3. Keep your response concise and to the point
4. Don't reveal your internal thoughts or strategy
5. Do not include bracketed placeholders such as [Your Name]; this is a real conversation between a buyer and a seller.

Remember: this is a professional negotiation. Your primary goal is to secure the highest possible price, but you must not go below the Wholesale Price.`,
		p.Name, p.RetailPrice, p.WholesalePrice, p.Features)
}

func buyerOpeningPrompt(p products.Product, budget float64) string {
	return fmt.Sprintf(`You are a professional negotiation assistant aiming to purchase a product at the best possible price.

Write a short and friendly message to the seller that:
1. Expresses interest in the product and asks about the possibility of negotiating the price
2. Sounds natural, polite, and engaging

Avoid over-explaining. Just say "Hello" to start and smoothly lead into your interest.

Product: %s
Retail Price: $%.2f
Features: %s
Your maximum budget for this purchase is $%.2f.

Keep the message concise and focused on opening the negotiation.`,
		p.Name, p.RetailPrice, p.Features, budget)
}

func sellerOpeningPrompt(p products.Product) string {
	return fmt.Sprintf(`You are a professional sales assistant opening a negotiation for a product.

Write a short and friendly message to a prospective buyer that:
1. Introduces the product and its asking price
2. Invites the buyer to discuss the price

Product: %s
Retail Price: $%.2f
Features: %s

Keep the message concise and focused on opening the negotiation.`,
		p.Name, p.RetailPrice, p.Features)
}

// chatMessages renders the transcript from one role's point of view: the
// counterpart's turns become user messages, the role's own turns assistant
// messages.
func chatMessages(role negotiation.Role, transcript []negotiation.Turn) []Message {
	messages := make([]Message, 0, len(transcript))
	for _, turn := range transcript {
		if turn.Role == role {
			messages = append(messages, Message{Role: "assistant", Content: turn.Text})
		} else {
			messages = append(messages, Message{Role: "user", Content: turn.Text})
		}
	}
	return messages
}

func extractionPrompt(sellerMessage string) string {
	return fmt.Sprintf(`Extract the price offered by the seller in the following message.
Return only the numerical price (with currency symbol) if there is a clear price offer.
If there is no clear price offer, return 'None'.

IMPORTANT: Only focus on the price of the product itself. Ignore any prices for add-ons like insurance, warranty, gifts, or accessories. Only extract the current offer price for the main product.

Here are some examples:

Example 1:
Seller's message: I can offer you this car for $25000, which is a fair price considering its features.
Price: $25000

Example 2:
Seller's message: Thank you for your interest in our product. Let me know if you have any specific questions about its features.
Price: None

Example 3:
Seller's message: I understand your budget constraints, but the best I can do is $22900 and with giving you a $3000 warranty.
Price: $22900

Now for the current message, please STRICTLY ONLY return the price with $ symbol, no other text:
Seller's message:
%s
Price:`, sellerMessage)
}

func verdictPrompt(buyerMessage, sellerMessage string) string {
	if sellerMessage == "" {
		sellerMessage = "No response yet"
	}
	return fmt.Sprintf(`You are evaluating if the buyer's latest response indicates agreement to a deal.

Buyer's latest message: "%s"
Seller's latest message: "%s"

Determine if the buyer's response indicates:
A. ACCEPTANCE - The buyer has clearly agreed to the deal
B. REJECTION - The buyer has clearly rejected the deal or indicated they cannot proceed
C. CONTINUE - The buyer wants to continue negotiating

Consider the following in your analysis:
- Has the buyer explicitly agreed to purchase at the offered price?
- Has the buyer explicitly rejected the offer or indicated they're walking away?
- Has the buyer indicated they cannot afford the price?
- Is the buyer still asking questions or making counter-offers?

Please strictly output a single line containing just one of: ACCEPTANCE, REJECTION, or CONTINUE.`,
		buyerMessage, sellerMessage)
}
